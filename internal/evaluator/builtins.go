package evaluator

import (
	"bzr/internal/object"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// builtins is read-only after package initialisation; each Evaluator copies it
// into its own registry.
var builtins = map[string]*object.Builtin{
	"len":    funcLen(),
	"append": funcAppend(),
	"slice":  funcSlice(),

	// output
	"puts":    funcPrint("puts", object.EvaluatorContext.Stdout, ""),
	"putsln":  funcPrint("putsln", object.EvaluatorContext.Stdout, "\n"),
	"eputs":   funcPrint("eputs", object.EvaluatorContext.Stderr, ""),
	"eputsln": funcPrint("eputsln", object.EvaluatorContext.Stderr, "\n"),
	"input":   funcInput(),

	// conversions
	"to_str":   funcToStr(),
	"to_int":   funcToInt(),
	"type":     funcType(),
	"is_error": funcIsError(),
}

func funcLen() *object.Builtin {
	return &object.Builtin{
		Name: "len",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("wrong number of arguments. got=%d, want=1",
					len(args))
			}

			switch arg := args[0].(type) {
			case *object.String:
				return &object.Integer{Value: int64(len([]rune(arg.Value)))}
			case *object.Array:
				return &object.Integer{Value: int64(len(arg.Elements))}
			default:
				return ctx.NewError("argument to `len` not supported, got %s",
					args[0].Type())
			}
		},
	}
}

// funcAppend grows an array in place and returns it. On a string it returns a
// new string with the rest of the arguments concatenated.
func funcAppend() *object.Builtin {
	return &object.Builtin{
		Name: "append",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) < 2 {
				return ctx.NewError("wrong number of arguments. got=%d, want=2+",
					len(args))
			}

			switch collection := args[0].(type) {
			case *object.Array:
				collection.Elements = append(collection.Elements, args[1:]...)
				return collection
			case *object.String:
				return &object.String{Value: collection.Value + join(args[1:])}
			default:
				return ctx.NewError("first argument to `append` must be array or str, got %s",
					args[0].Type())
			}
		},
	}
}

// funcSlice returns the elements in [start, end). The result never shares
// storage with the source array.
func funcSlice() *object.Builtin {
	return &object.Builtin{
		Name: "slice",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 3 {
				return ctx.NewError("wrong number of arguments. got=%d, want=3",
					len(args))
			}

			start, ok := args[1].(*object.Integer)
			if !ok {
				return ctx.NewError("invalid start %s", args[1].Inspect())
			}
			end, ok := args[2].(*object.Integer)
			if !ok {
				return ctx.NewError("invalid end %s", args[2].Inspect())
			}

			switch collection := args[0].(type) {
			case *object.String:
				runes := []rune(collection.Value)
				if err := checkBounds(ctx, start.Value, end.Value, len(runes)); err != nil {
					return err
				}
				return &object.String{Value: string(runes[start.Value:end.Value])}
			case *object.Array:
				if err := checkBounds(ctx, start.Value, end.Value, len(collection.Elements)); err != nil {
					return err
				}
				elements := make([]object.Object, end.Value-start.Value)
				copy(elements, collection.Elements[start.Value:end.Value])
				return &object.Array{Elements: elements}
			default:
				return ctx.NewError("argument to `slice` must be array or str, got %s",
					args[0].Type())
			}
		},
	}
}

func checkBounds(ctx object.EvaluatorContext, start, end int64, length int) *object.Error {
	if start < 0 || end < start || end > int64(length) {
		return ctx.NewError("slice bounds out of range [%d:%d] with length %d", start, end, length)
	}
	return nil
}

// funcPrint writes its arguments, concatenated, to the stream chosen by out and
// returns what it wrote minus the suffix.
func funcPrint(name string, out func(object.EvaluatorContext) io.Writer, suffix string) *object.Builtin {
	return &object.Builtin{
		Name: name,
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			text := join(args)
			if _, err := fmt.Fprint(out(ctx), text+suffix); err != nil {
				return ctx.NewError("%s: %v", name, err)
			}
			return &object.String{Value: text}
		},
	}
}

func funcInput() *object.Builtin {
	return &object.Builtin{
		Name: "input",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 0 {
				return ctx.NewError("wrong number of arguments. got=%d, want=0",
					len(args))
			}

			line, err := ctx.ReadLine()
			if err != nil {
				return ctx.NewError("input: %v", err)
			}
			return &object.String{Value: line}
		},
	}
}

func funcToStr() *object.Builtin {
	return &object.Builtin{
		Name: "to_str",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) == 0 {
				return ctx.NewError("wrong number of arguments. got=0, want=1+")
			}
			return &object.String{Value: join(args)}
		},
	}
}

func funcToInt() *object.Builtin {
	return &object.Builtin{
		Name: "to_int",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("wrong number of arguments. got=%d, want=1",
					len(args))
			}
			if i, ok := args[0].(*object.Integer); ok {
				return i
			}

			value, err := strconv.ParseInt(strings.TrimSpace(args[0].Inspect()), 10, 64)
			if err != nil {
				return ctx.NewError("invalid value to parse int: %s", args[0].Inspect())
			}
			return &object.Integer{Value: value}
		},
	}
}

func funcType() *object.Builtin {
	return &object.Builtin{
		Name: "type",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("wrong number of arguments. got=%d, want=1",
					len(args))
			}
			return &object.String{Value: string(args[0].Type())}
		},
	}
}

func funcIsError() *object.Builtin {
	return &object.Builtin{
		Name:          "is_error",
		AcceptsErrors: true,
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("wrong number of arguments. got=%d, want=1",
					len(args))
			}
			return ctx.NativeBoolToBooleanObject(object.IsError(args[0]))
		},
	}
}

func join(args []object.Object) string {
	var out strings.Builder
	for _, arg := range args {
		out.WriteString(arg.Inspect())
	}
	return out.String()
}
