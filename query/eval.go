// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package query

import (
	"fmt"
	"math"
	"strconv"

	"github.com/penny-vault/pvfunds/data"
)

// ErrEval marks an expression that parsed fine but could not be evaluated
// against a ticker's rows.
var ErrEval = fmt.Errorf("evaluation error")

// cell is one evaluated value. Column cells carry both the parsed number
// and the raw text so that string comparisons against unparseable fields
// (e.g. sector names) still work.
type cell struct {
	num   float64
	str   string
	year  int
	isStr bool
}

// value is the result of evaluating a sub-expression over one ticker's
// rows: either a per-row series or a single scalar.
type value struct {
	series   []cell
	scalar   cell
	isSeries bool
}

func scalarValue(c cell) value {
	return value{scalar: c, isSeries: false}
}

func numScalar(f float64) value {
	return scalarValue(cell{num: f})
}

// collapse reduces a value to a single float. A series collapses to its
// most recent entry, matching how a single metric is reported per ticker.
func (v value) collapse() float64 {
	if !v.isSeries {
		return v.scalar.num
	}
	if len(v.series) == 0 {
		return math.NaN()
	}
	return v.series[len(v.series)-1].num
}

// evalExpr evaluates a parsed expression against one ticker's rows,
// ordered oldest first, and collapses the result to a single number.
func evalExpr(root node, rows []data.Row) (float64, error) {
	val, err := eval(root, rows)
	if err != nil {
		return math.NaN(), err
	}
	return val.collapse(), nil
}

func eval(n node, rows []data.Row) (value, error) {
	switch n := n.(type) {
	case numberNode:
		return numScalar(n.val), nil

	case stringNode:
		return scalarValue(cell{num: math.NaN(), str: n.val, isStr: true}), nil

	case boolNode:
		if n.val {
			return numScalar(1), nil
		}
		return numScalar(0), nil

	case noneNode:
		return numScalar(math.NaN()), nil

	case columnNode:
		return columnSeries(n.name, rows), nil

	case unaryNode:
		operand, err := eval(n.operand, rows)
		if err != nil {
			return value{}, err
		}
		return mapCells(operand, func(c cell) cell {
			return cell{num: -c.num, year: c.year}
		}), nil

	case binaryNode:
		left, err := eval(n.left, rows)
		if err != nil {
			return value{}, err
		}
		right, err := eval(n.right, rows)
		if err != nil {
			return value{}, err
		}
		return combine(n.op, left, right)

	case callNode:
		return evalCall(n, rows)

	default:
		return value{}, fmt.Errorf("%w: unhandled node", ErrEval)
	}
}

func columnSeries(name string, rows []data.Row) value {
	series := make([]cell, 0, len(rows))
	for _, row := range rows {
		year, _ := row.Int(data.FiscalYearColumn)
		raw := row[name]
		num := math.NaN()
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			num = parsed
		}
		series = append(series, cell{num: num, str: raw, year: year})
	}
	return value{series: series, isSeries: true}
}

func mapCells(v value, fn func(cell) cell) value {
	if !v.isSeries {
		return scalarValue(fn(v.scalar))
	}
	out := make([]cell, len(v.series))
	for i, c := range v.series {
		out[i] = fn(c)
	}
	return value{series: out, isSeries: true}
}

// combine applies a binary operator, broadcasting scalars over series.
func combine(op tokenType, left, right value) (value, error) {
	apply := func(a, b cell) cell {
		year := a.year
		if year == 0 {
			year = b.year
		}
		return cell{num: applyOp(op, a, b), year: year}
	}

	switch {
	case left.isSeries && right.isSeries:
		if len(left.series) != len(right.series) {
			return value{}, fmt.Errorf("%w: series length mismatch", ErrEval)
		}
		out := make([]cell, len(left.series))
		for i := range left.series {
			out[i] = apply(left.series[i], right.series[i])
		}
		return value{series: out, isSeries: true}, nil

	case left.isSeries:
		return mapCells(left, func(c cell) cell { return apply(c, right.scalar) }), nil

	case right.isSeries:
		return mapCells(right, func(c cell) cell { return apply(left.scalar, c) }), nil

	default:
		return scalarValue(apply(left.scalar, right.scalar)), nil
	}
}

func applyOp(op tokenType, a, b cell) float64 {
	switch op {
	case tokenPlus:
		return a.num + b.num
	case tokenMinus:
		return a.num - b.num
	case tokenStar:
		return a.num * b.num
	case tokenSlash:
		if b.num == 0 {
			return math.NaN()
		}
		return a.num / b.num
	case tokenEq, tokenNeq:
		var equal bool
		if a.isStr || b.isStr {
			equal = a.str == b.str
		} else {
			equal = a.num == b.num
		}
		if op == tokenNeq {
			equal = !equal
		}
		if equal {
			return 1
		}
		return 0
	}
	return math.NaN()
}

func evalCall(call callNode, rows []data.Row) (value, error) {
	switch call.name {
	case "cagr":
		return evalCagr(call, rows)
	case "mean":
		return evalMean(call, rows)
	default:
		return value{}, fmt.Errorf("%w: unknown function %q", ErrEval, call.name)
	}
}

func evalMean(call callNode, rows []data.Row) (value, error) {
	if len(call.args) != 1 {
		return value{}, fmt.Errorf("%w: mean takes one argument", ErrEval)
	}

	arg, err := eval(call.args[0], rows)
	if err != nil {
		return value{}, err
	}
	if !arg.isSeries {
		return arg, nil
	}

	var sum float64
	var count int
	for _, c := range arg.series {
		if math.IsNaN(c.num) {
			continue
		}
		sum += c.num
		count++
	}
	if count == 0 {
		return numScalar(math.NaN()), nil
	}
	return numScalar(sum / float64(count)), nil
}

// evalCagr computes compound annual growth of a series, anchored at the
// series' most recent point. The start is the first point, or the point
// exactly n years before the latest when n is given. A missing start or
// end value makes the result undefined. n and all_plus may be passed
// positionally or by keyword.
func evalCagr(call callNode, rows []data.Row) (value, error) {
	if len(call.args) < 1 || len(call.args) > 3 {
		return value{}, fmt.Errorf("%w: cagr takes a series plus optional n and all_plus", ErrEval)
	}

	arg, err := eval(call.args[0], rows)
	if err != nil {
		return value{}, err
	}
	if !arg.isSeries {
		return numScalar(math.NaN()), nil
	}

	nArg, err := cagrArg(call, "n", 1)
	if err != nil {
		return value{}, err
	}
	allPlusArg, err := cagrArg(call, "all_plus", 2)
	if err != nil {
		return value{}, err
	}

	n, haveN, err := cagrYears(nArg)
	if err != nil {
		return value{}, err
	}
	allPlus, err := cagrAllPlus(allPlusArg, rows)
	if err != nil {
		return value{}, err
	}

	series := arg.series
	if len(series) < 2 {
		return numScalar(math.NaN()), nil
	}

	end := series[len(series)-1]
	startIdx := 0
	if haveN {
		wantYear := end.year - n
		startIdx = -1
		for i, c := range series {
			if c.year == wantYear {
				startIdx = i
				break
			}
		}
		if startIdx < 0 {
			return numScalar(math.NaN()), nil
		}
	}
	start := series[startIdx]

	if allPlus {
		for i := startIdx + 1; i < len(series); i++ {
			change := (series[i].num - series[i-1].num) / series[i-1].num
			if change < 0 {
				return numScalar(math.NaN()), nil
			}
		}
	}

	// NaN endpoints fail here too
	if !(start.num > 0 && end.num > 0) {
		return numScalar(math.NaN()), nil
	}

	span := end.year - start.year
	if span <= 0 {
		return numScalar(math.NaN()), nil
	}

	rate := (math.Pow(end.num/start.num, 1/float64(span)) - 1) * 100
	return numScalar(rate), nil
}

// cagrArg resolves one optional cagr parameter that may arrive either as
// a positional argument or a keyword. nil means the parameter was not
// supplied.
func cagrArg(call callNode, name string, pos int) (node, error) {
	kw, haveKw := call.kwargs[name]
	if pos < len(call.args) {
		if haveKw {
			return nil, fmt.Errorf("%w: cagr got multiple values for %s", ErrEval, name)
		}
		return call.args[pos], nil
	}
	if haveKw {
		return kw, nil
	}
	return nil, nil
}

func cagrYears(arg node) (int, bool, error) {
	if arg == nil {
		return 0, false, nil
	}
	if _, isNone := arg.(noneNode); isNone {
		return 0, false, nil
	}
	num, ok := arg.(numberNode)
	if !ok {
		return 0, false, fmt.Errorf("%w: cagr n must be a number", ErrEval)
	}
	return int(num.val), true, nil
}

func cagrAllPlus(arg node, rows []data.Row) (bool, error) {
	if arg == nil {
		return false, nil
	}
	val, err := eval(arg, rows)
	if err != nil {
		return false, err
	}
	return val.collapse() != 0, nil
}
