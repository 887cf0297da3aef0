package noisebox

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

func basicLitToValue(t *ast.BasicLit) reflect.Value {
	var i interface{}
	switch t.Kind {
	case token.STRING:
		i = strings.Trim(t.Value, "\"")
	case token.INT:
		i, _ = strconv.ParseInt(t.Value, 10, 32)
	case token.FLOAT:
		i, _ = strconv.ParseFloat(t.Value, 64)
	}
	return reflect.ValueOf(i)
}

// DynamicCall invokes the method of obj named by call, a literal go call
// expression such as Alert("boom", "telegram"). Arguments are limited to
// string, int, float and bool literals.
func DynamicCall(obj interface{}, call string) (err error) {
	as, _ := parser.ParseExpr(call)
	ce, ok := as.(*ast.CallExpr)
	if !ok {
		return errors.New("Didn't parse to CallExpr")
	}

	instance := reflect.ValueOf(obj)
	fname := fmt.Sprint(ce.Fun)
	method := instance.MethodByName(fname)
	if !method.IsValid() {
		return fmt.Errorf("Error: %s not found", call)
	}

	var args []reflect.Value
	for _, expr := range ce.Args {
		var v reflect.Value
		switch t := expr.(type) {
		case *ast.BasicLit:
			v = basicLitToValue(t)
		case *ast.Ident:
			switch t.Name {
			case "true":
				v = reflect.ValueOf(true)
			case "false":
				v = reflect.ValueOf(false)
			}
		default:
			return fmt.Errorf("Expression: %v not understood", t)
		}
		args = append(args, v)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Error calling: %s %s", call, r)
		}
	}()
	method.Call(args)
	return
}

var reSub = regexp.MustCompile(`\$(\w+)`)

// Substitute replaces $var placeholders from vals, leaving unknown ones
// alone.
func Substitute(s string, vals map[string]string) string {
	return reSub.ReplaceAllStringFunc(s, func(k string) string {
		if v, ok := vals[k[1:]]; ok {
			return v
		}
		return k
	})
}
