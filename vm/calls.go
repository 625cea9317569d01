package vm

import "github.com/corelang/pyaot/bytecode"

// call pops arg values (positional args, with any keyword values already
// flattened in by the compiler) and the callable beneath them, invokes it,
// and pushes the result.
func (m *VM) call(f *frame, argc int, _ *bytecode.Program) (Value, control, error) {
	args, err := f.popN(argc)
	if err != nil {
		return Value{}, ctrlNone, err
	}
	callee, err := f.pop()
	if err != nil {
		return Value{}, ctrlNone, err
	}
	result, err := m.invoke(callee, args)
	if err != nil {
		return Value{}, ctrlNone, err
	}
	f.push(result)
	return Value{}, ctrlNone, nil
}

func (m *VM) invoke(callee Value, args []Value) (Value, error) {
	if callee.Kind != KindFunction {
		return Value{}, typeError("object is not callable")
	}
	fn := callee.Func
	if fn.Builtin != nil {
		return fn.Builtin(args)
	}
	return m.runFrame(newFrame(fn.Code, args, m.callGlobals(fn), fn.Cells))
}

// callGlobals gives a called function its own fresh global namespace seeded
// with the VM's builtins; this VM has no module-level global frame shared
// across calls, only the one each top-level Run starts with.
func (m *VM) callGlobals(fn *Function) map[string]Value {
	g := make(map[string]Value, len(m.builtins))
	for k, v := range m.builtins {
		g[k] = v
	}
	return g
}

// raise pops argc operands (the exception, and optionally its cause) and
// turns them into an error the frame/VM unwind on. A bare raised callable
// (e.g. `raise AssertionError`, no message) is invoked with no arguments to
// produce its exception instance, matching Python's class-to-instance
// coercion at raise time.
func (m *VM) raise(f *frame, argc int) (Value, control, error) {
	if argc == 0 {
		return Value{}, ctrlNone, runtimeError("no active exception to re-raise")
	}
	vals, err := f.popN(argc)
	if err != nil {
		return Value{}, ctrlNone, err
	}
	excVal := vals[0]
	if excVal.Kind == KindFunction {
		excVal, err = m.invoke(excVal, nil)
		if err != nil {
			return Value{}, ctrlNone, err
		}
	}
	if excVal.Kind == KindException {
		return Value{}, ctrlNone, excVal.Exc
	}
	return Value{}, ctrlNone, runtimeError(displayString(excVal))
}

func loadAttr(obj Value, name string) (Value, error) {
	if obj.Kind == KindDict {
		if v, ok := obj.Dict.Get(StringValue(name)); ok {
			return v, nil
		}
	}
	return Value{}, attributeError(name)
}

func storeAttr(obj Value, name string, val Value) error {
	if obj.Kind != KindDict {
		return attributeError(name)
	}
	obj.Dict.Set(StringValue(name), val)
	return nil
}

func subscriptGet(container, index Value) (Value, error) {
	switch container.Kind {
	case KindList:
		i, err := sliceIndex(index, len(container.List.Elts))
		if err != nil {
			return Value{}, err
		}
		return container.List.Elts[i], nil
	case KindTuple:
		i, err := sliceIndex(index, len(container.Tuple))
		if err != nil {
			return Value{}, err
		}
		return container.Tuple[i], nil
	case KindString:
		runes := []rune(container.Str)
		i, err := sliceIndex(index, len(runes))
		if err != nil {
			return Value{}, err
		}
		return StringValue(string(runes[i])), nil
	case KindDict:
		if v, ok := container.Dict.Get(index); ok {
			return v, nil
		}
		return Value{}, indexError("key not found")
	default:
		return Value{}, typeError("object is not subscriptable")
	}
}

func subscriptSet(container, index, val Value) error {
	switch container.Kind {
	case KindList:
		i, err := sliceIndex(index, len(container.List.Elts))
		if err != nil {
			return err
		}
		container.List.Elts[i] = val
		return nil
	case KindDict:
		container.Dict.Set(index, val)
		return nil
	default:
		return typeError("object does not support item assignment")
	}
}

func subscriptDelete(container, index Value) error {
	switch container.Kind {
	case KindList:
		i, err := sliceIndex(index, len(container.List.Elts))
		if err != nil {
			return err
		}
		container.List.Elts = append(container.List.Elts[:i], container.List.Elts[i+1:]...)
		return nil
	case KindDict:
		if !container.Dict.Delete(index) {
			return indexError("key not found")
		}
		return nil
	default:
		return typeError("object does not support item deletion")
	}
}

func sliceIndex(index Value, length int) (int, error) {
	if index.Kind != KindInt && index.Kind != KindBool {
		return 0, typeError("indices must be integers")
	}
	i := int(intOf(index))
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, indexError("index out of range")
	}
	return i, nil
}
