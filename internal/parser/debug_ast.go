package parser

import (
	"bytes"
	"bzr/internal/ast"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// WalkAST serializes an AST into nested maps. Keys carry a numeric prefix so the
// encoders, which sort map keys, keep the fields in reading order.
func WalkAST(node ast.Node) interface{} {
	switch n := node.(type) {
	case nil:
		return nil

	case *ast.Program:
		return map[string]interface{}{
			"0.type":       "Program",
			"1.statements": walkStatements(n.Statements),
		}

	case *ast.LetStatement:
		return bindingNode("LetStatement", n.Token.Location.String(), n.Name, n.DeclaredType, n.Value)

	case *ast.VarStatement:
		return bindingNode("VarStatement", n.Token.Location.String(), n.Name, n.DeclaredType, n.Value)

	case *ast.ReturnStatement:
		return map[string]interface{}{
			"0.type":        "ReturnStatement",
			"1.position":    n.Token.Location.String(),
			"2.returnValue": WalkAST(n.ReturnValue),
		}

	case *ast.ExpressionStatement:
		return map[string]interface{}{
			"0.type":       "ExpressionStatement",
			"1.position":   n.Token.Location.String(),
			"2.expression": WalkAST(n.Expression),
		}

	case *ast.BlockStatement:
		if n == nil {
			return nil
		}
		return map[string]interface{}{
			"0.type":       "BlockStatement",
			"1.position":   n.Token.Location.String(),
			"2.statements": walkStatements(n.Statements),
		}

	case *ast.Identifier:
		return map[string]interface{}{
			"0.type":     "Identifier",
			"1.position": n.Token.Location.String(),
			"2.value":    n.Value,
		}

	case *ast.IntegerLiteral:
		return literalNode("IntegerLiteral", n.Token.Location.String(), n, n.Value)

	case *ast.BooleanLiteral:
		return literalNode("BooleanLiteral", n.Token.Location.String(), n, n.Value)

	case *ast.StringLiteral:
		return literalNode("StringLiteral", n.Token.Location.String(), n, n.Value)

	case *ast.ArrayLiteral:
		return map[string]interface{}{
			"0.type":         "ArrayLiteral",
			"1.position":     n.Token.Location.String(),
			"2.resolvedType": n.ResolvedType().String(),
			"3.elements":     walkExpressions(n.Elements),
		}

	case *ast.PrefixExpression:
		return map[string]interface{}{
			"0.type":         "PrefixExpression",
			"1.position":     n.Token.Location.String(),
			"2.resolvedType": n.ResolvedType().String(),
			"3.operator":     n.Operator,
			"4.right":        WalkAST(n.Right),
		}

	case *ast.InfixExpression:
		return map[string]interface{}{
			"0.type":         "InfixExpression",
			"1.position":     n.Token.Location.String(),
			"2.resolvedType": n.ResolvedType().String(),
			"3.left":         WalkAST(n.Left),
			"4.operator":     n.Operator,
			"5.right":        WalkAST(n.Right),
		}

	case *ast.AssignExpression:
		return map[string]interface{}{
			"0.type":         "AssignExpression",
			"1.position":     n.Token.Location.String(),
			"2.resolvedType": n.ResolvedType().String(),
			"3.target":       WalkAST(n.Target),
			"4.value":        WalkAST(n.Value),
		}

	case *ast.IfExpression:
		m := map[string]interface{}{
			"0.type":        "IfExpression",
			"1.position":    n.Token.Location.String(),
			"2.condition":   WalkAST(n.Condition),
			"3.consequence": WalkAST(n.Consequence),
		}
		if n.ElseIf != nil {
			m["4.elseIf"] = WalkAST(n.ElseIf)
		} else if n.Alternative != nil {
			m["4.alternative"] = WalkAST(n.Alternative)
		}
		return m

	case *ast.WhileExpression:
		return map[string]interface{}{
			"0.type":      "WhileExpression",
			"1.position":  n.Token.Location.String(),
			"2.condition": WalkAST(n.Condition),
			"3.body":      WalkAST(n.Body),
		}

	case *ast.FunctionLiteral:
		parameters := make([]interface{}, len(n.Parameters))
		for i, param := range n.Parameters {
			parameters[i] = map[string]interface{}{
				"0.type":         "Parameter",
				"1.position":     param.Name.Token.Location.String(),
				"2.name":         param.Name.Value,
				"3.declaredType": param.Type.String(),
			}
		}
		m := map[string]interface{}{
			"0.type":       "FunctionLiteral",
			"1.position":   n.Token.Location.String(),
			"3.parameters": parameters,
			"4.returnType": n.ReturnType.String(),
			"5.body":       WalkAST(n.Body),
		}
		if n.Name != nil {
			m["2.name"] = n.Name.Value
		}
		return m

	case *ast.CallExpression:
		return map[string]interface{}{
			"0.type":      "CallExpression",
			"1.position":  n.Token.Location.String(),
			"2.function":  WalkAST(n.Function),
			"3.arguments": walkExpressions(n.Arguments),
		}

	case *ast.IndexExpression:
		return map[string]interface{}{
			"0.type":     "IndexExpression",
			"1.position": n.Token.Location.String(),
			"2.left":     WalkAST(n.Left),
			"3.index":    WalkAST(n.Index),
		}

	default:
		return map[string]interface{}{
			"0.type": "Unknown: " + n.String(),
		}
	}
}

func walkStatements(stmts []ast.Statement) []interface{} {
	out := make([]interface{}, len(stmts))
	for i, s := range stmts {
		out[i] = WalkAST(s)
	}
	return out
}

func walkExpressions(exps []ast.Expression) []interface{} {
	out := make([]interface{}, len(exps))
	for i, e := range exps {
		out[i] = WalkAST(e)
	}
	return out
}

func bindingNode(kind, position string, name *ast.Identifier, declared ast.Type, value ast.Expression) map[string]interface{} {
	return map[string]interface{}{
		"0.type":         kind,
		"1.position":     position,
		"2.name":         name.Value,
		"3.declaredType": declared.String(),
		"4.value":        WalkAST(value),
	}
}

func literalNode(kind, position string, n ast.Expression, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"0.type":         kind,
		"1.position":     position,
		"2.resolvedType": n.ResolvedType().String(),
		"3.value":        value,
	}
}

// RenderAST writes the AST of node in one of the formats json, yaml or text.
func RenderAST(w io.Writer, node ast.Node, format string) error {
	tree := WalkAST(node)

	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")  // Pretty-print the JSON
		encoder.SetEscapeHTML(false) // Disable escaping of characters like <, >, &
		if err := encoder.Encode(tree); err != nil {
			return fmt.Errorf("failed to write JSON: %w", err)
		}
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(tree); err != nil {
			return fmt.Errorf("failed to write YAML: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("failed to write YAML: %w", err)
		}
	case "text":
		var out bytes.Buffer
		renderText(&out, tree, 0)
		if _, err := w.Write(out.Bytes()); err != nil {
			return fmt.Errorf("failed to write AST: %w", err)
		}
	default:
		return fmt.Errorf("unknown AST format %q (want json, yaml or text)", format)
	}
	return nil
}

// renderText prints one node per line, "Type @position", with its fields
// indented below it.
func renderText(out *bytes.Buffer, tree interface{}, indent int) {
	prefix := strings.Repeat("  ", indent)

	switch v := tree.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		header := fmt.Sprintf("%v", v["0.type"])
		if pos, ok := v["1.position"]; ok {
			header += " @" + fmt.Sprintf("%v", pos)
		}
		out.WriteString(prefix + header + "\n")

		for _, k := range keys {
			if k == "0.type" || k == "1.position" {
				continue
			}
			name := k[strings.IndexByte(k, '.')+1:]
			switch field := v[k].(type) {
			case map[string]interface{}, []interface{}:
				out.WriteString(prefix + "  " + name + ":\n")
				renderText(out, field, indent+2)
			case nil:
				out.WriteString(prefix + "  " + name + ": (none)\n")
			default:
				out.WriteString(fmt.Sprintf("%s  %s: %v\n", prefix, name, field))
			}
		}

	case []interface{}:
		if len(v) == 0 {
			out.WriteString(prefix + "(none)\n")
		}
		for _, item := range v {
			renderText(out, item, indent)
		}

	case nil:
		out.WriteString(prefix + "(none)\n")

	default:
		out.WriteString(fmt.Sprintf("%s%v\n", prefix, v))
	}
}
