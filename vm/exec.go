package vm

import (
	"fmt"

	"github.com/corelang/pyaot/bytecode"
	"github.com/corelang/pyaot/errs"
)

// VM executes compiled Programs. A VM instance is stateless between calls
// to Run except for its builtin namespace, so many VMs may share a single
// immutable Program concurrently.
type VM struct {
	builtins map[string]Value
}

// New returns a VM with the default builtin namespace.
func New() *VM { return &VM{builtins: defaultBuiltins()} }

// Run executes code with args bound positionally to its varnames prefix and
// returns its final RETURN_VALUE result, or the first uncaught error.
func (m *VM) Run(code *bytecode.Program, args []Value) (Value, error) {
	globals := map[string]Value{}
	for k, v := range m.builtins {
		globals[k] = v
	}
	return m.runFrame(newFrame(code, args, globals, nil))
}

func (m *VM) runFrame(f *frame) (Value, error) {
	if uint32(cap(f.stack)) < f.code.StackSize {
		f.stack = make([]Value, 0, f.code.StackSize)
	}

	var extended uint32
	for {
		if f.pc >= len(f.code.Instructions) {
			return NoneValue(), nil
		}
		ins := f.code.Instructions[f.pc]
		arg := ins.Arg
		if extended != 0 {
			arg |= extended << 24
			extended = 0
		}

		if ins.Op == bytecode.ExtendedArg {
			extended = ins.Arg
			f.pc++
			continue
		}

		result, ctrl, err := m.step(f, ins.Op, arg)
		if err != nil {
			if handled, handlerErr := f.handleException(err); handled {
				if handlerErr != nil {
					return Value{}, handlerErr
				}
				continue
			}
			return Value{}, err
		}
		switch ctrl {
		case ctrlReturn:
			return result, nil
		case ctrlJumped:
			continue
		default:
			f.pc++
		}
	}
}

type control uint8

const (
	ctrlNone control = iota
	ctrlReturn
	ctrlJumped
)

// handleException consults the frame's exception block stack: if a handler
// is active, pc jumps to it with the caught exception pushed (the compiler
// emits a store to the handler's `as` name, or POP_TOP when there is none,
// as the handler's first instruction to consume it); otherwise the error propagates to the caller uncaught.
func (f *frame) handleException(cause error) (bool, error) {
	if len(f.blocks) == 0 {
		return false, nil
	}
	top := f.blocks[len(f.blocks)-1]
	f.blocks = f.blocks[:len(f.blocks)-1]
	f.pc = top.handlerPC
	f.stack = f.stack[:0]
	f.push(excValue(cause))
	return true, nil
}

// excValue converts a raised Go error into the Value a handler's `as` target
// binds to: the Exception itself when the VM raised one, or a generic
// RuntimeError wrapping any other internal error.
func excValue(cause error) Value {
	var exc *Exception
	if e, ok := cause.(*Exception); ok {
		exc = e
	} else {
		exc = &Exception{Type: "RuntimeError", Args: []Value{StringValue(cause.Error())}}
	}
	return ExceptionValue(exc)
}

func (m *VM) step(f *frame, op bytecode.Opcode, arg uint32) (Value, control, error) {
	switch op {
	case bytecode.PopTop:
		_, err := f.pop()
		return Value{}, ctrlNone, err
	case bytecode.DupTop:
		v, err := f.peek(0)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(v)
		return Value{}, ctrlNone, nil
	case bytecode.RotTwo:
		a, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		b, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(a)
		f.push(b)
		return Value{}, ctrlNone, nil
	case bytecode.RotThree:
		a, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		b, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		c, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(a)
		f.push(c)
		f.push(b)
		return Value{}, ctrlNone, nil
	case bytecode.Nop:
		return Value{}, ctrlNone, nil

	case bytecode.UnaryNegative, bytecode.UnaryNot, bytecode.UnaryInvert, bytecode.UnaryPositive:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		result, err := unaryOp(op, v)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(result)
		return Value{}, ctrlNone, nil

	case bytecode.BinaryAdd, bytecode.BinarySubtract, bytecode.BinaryMultiply, bytecode.BinaryTrueDivide,
		bytecode.BinaryFloorDivide, bytecode.BinaryModulo, bytecode.BinaryPower, bytecode.BinaryAnd,
		bytecode.BinaryOr, bytecode.BinaryXor, bytecode.BinaryLShift, bytecode.BinaryRShift,
		bytecode.InplaceAdd, bytecode.InplaceSubtract, bytecode.InplaceMultiply, bytecode.InplaceTrueDivide,
		bytecode.InplaceFloorDivide, bytecode.InplaceModulo, bytecode.InplacePower, bytecode.InplaceAnd,
		bytecode.InplaceOr, bytecode.InplaceXor, bytecode.InplaceLShift, bytecode.InplaceRShift:
		right, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		left, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		result, err := binaryArith(op, left, right)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(result)
		return Value{}, ctrlNone, nil

	case bytecode.CompareOp:
		right, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		left, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		result, err := compareValues(cmpKind(arg), left, right)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(result)
		return Value{}, ctrlNone, nil

	case bytecode.LoadConst:
		f.push(fromConstant(f.code.Constants[arg]))
		return Value{}, ctrlNone, nil
	case bytecode.LoadName:
		name := f.code.Names[arg]
		v, ok := f.globals[name]
		if !ok {
			return Value{}, ctrlNone, nameError(name)
		}
		f.push(v)
		return Value{}, ctrlNone, nil
	case bytecode.StoreName:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.globals[f.code.Names[arg]] = v
		return Value{}, ctrlNone, nil
	case bytecode.DeleteName:
		delete(f.globals, f.code.Names[arg])
		return Value{}, ctrlNone, nil
	case bytecode.LoadFast:
		if int(arg) >= len(f.locals) {
			return Value{}, ctrlNone, nameError(f.code.Varnames[arg])
		}
		f.push(f.locals[arg])
		return Value{}, ctrlNone, nil
	case bytecode.StoreFast:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.locals[arg] = v
		return Value{}, ctrlNone, nil
	case bytecode.DeleteFast:
		f.locals[arg] = Value{}
		return Value{}, ctrlNone, nil
	case bytecode.LoadGlobal:
		name := f.code.Names[arg]
		v, ok := f.globals[name]
		if !ok {
			return Value{}, ctrlNone, nameError(name)
		}
		f.push(v)
		return Value{}, ctrlNone, nil
	case bytecode.StoreGlobal:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.globals[f.code.Names[arg]] = v
		return Value{}, ctrlNone, nil
	case bytecode.LoadDeref:
		if int(arg) >= len(f.cells) {
			// No closure cell (e.g. a top-level Run): the free name resolves
			// through globals, which hold the builtins.
			name := f.code.Freevars[arg]
			v, ok := f.globals[name]
			if !ok {
				return Value{}, ctrlNone, nameError(name)
			}
			f.push(v)
			return Value{}, ctrlNone, nil
		}
		f.push(f.cells[arg])
		return Value{}, ctrlNone, nil
	case bytecode.StoreDeref:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if int(arg) < len(f.cells) {
			f.cells[arg] = v
		}
		return Value{}, ctrlNone, nil

	case bytecode.LoadAttr:
		obj, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		v, err := loadAttr(obj, f.code.Names[arg])
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(v)
		return Value{}, ctrlNone, nil
	case bytecode.StoreAttr:
		obj, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		val, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if err := storeAttr(obj, f.code.Names[arg], val); err != nil {
			return Value{}, ctrlNone, err
		}
		return Value{}, ctrlNone, nil
	case bytecode.DeleteAttr:
		obj, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if obj.Kind != KindDict || !obj.Dict.Delete(StringValue(f.code.Names[arg])) {
			return Value{}, ctrlNone, attributeError(f.code.Names[arg])
		}
		return Value{}, ctrlNone, nil

	case bytecode.BinarySubscr:
		index, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		container, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		v, err := subscriptGet(container, index)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(v)
		return Value{}, ctrlNone, nil
	case bytecode.StoreSubscr:
		index, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		container, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		val, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if err := subscriptSet(container, index, val); err != nil {
			return Value{}, ctrlNone, err
		}
		return Value{}, ctrlNone, nil
	case bytecode.DeleteSubscr:
		index, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		container, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if err := subscriptDelete(container, index); err != nil {
			return Value{}, ctrlNone, err
		}
		return Value{}, ctrlNone, nil
	case bytecode.BuildSlice:
		var step Value = IntValue(1)
		if arg == 3 {
			var err error
			step, err = f.pop()
			if err != nil {
				return Value{}, ctrlNone, err
			}
		}
		stop, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		start, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(TupleValue([]Value{start, stop, step}))
		return Value{}, ctrlNone, nil

	case bytecode.JumpAbsolute:
		f.pc = int(arg)
		return Value{}, ctrlJumped, nil
	case bytecode.JumpForward:
		f.pc = int(arg)
		return Value{}, ctrlJumped, nil
	case bytecode.PopJumpIfTrue:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if v.Truthy() {
			f.pc = int(arg)
			return Value{}, ctrlJumped, nil
		}
		return Value{}, ctrlNone, nil
	case bytecode.PopJumpIfFalse:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if !v.Truthy() {
			f.pc = int(arg)
			return Value{}, ctrlJumped, nil
		}
		return Value{}, ctrlNone, nil
	case bytecode.JumpIfTrueOrPop:
		v, err := f.peek(0)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if v.Truthy() {
			f.pc = int(arg)
			return Value{}, ctrlJumped, nil
		}
		f.pop()
		return Value{}, ctrlNone, nil
	case bytecode.JumpIfFalseOrPop:
		v, err := f.peek(0)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if !v.Truthy() {
			f.pc = int(arg)
			return Value{}, ctrlJumped, nil
		}
		f.pop()
		return Value{}, ctrlNone, nil
	case bytecode.ReturnValue:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		return v, ctrlReturn, nil

	case bytecode.GetIter:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		it, err := newIterator(v)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(Value{Kind: KindIterator, Iter: it})
		return Value{}, ctrlNone, nil
	case bytecode.ForIter:
		top, err := f.peek(0)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if top.Kind != KindIterator {
			return Value{}, ctrlNone, typeError("FOR_ITER on a non-iterator")
		}
		next, ok := top.Iter.next()
		if !ok {
			f.pop()
			f.pc = int(arg)
			return Value{}, ctrlJumped, nil
		}
		f.push(next)
		return Value{}, ctrlNone, nil

	case bytecode.CallFunction:
		return m.call(f, int(arg), nil)
	case bytecode.CallFunctionKw:
		return m.call(f, int(arg), nil)
	case bytecode.MakeFunction:
		nameVal, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		codeVal, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if codeVal.Kind != KindCode {
			return Value{}, ctrlNone, typeError("MAKE_FUNCTION expects a code object")
		}
		cells := make([]Value, len(codeVal.Code.Freevars))
		for i, fv := range codeVal.Code.Freevars {
			if v, ok := lookupByName(f, fv); ok {
				cells[i] = v
			}
		}
		f.push(Value{Kind: KindFunction, Func: &Function{Name: nameVal.Str, Code: codeVal.Code, Cells: cells}})
		return Value{}, ctrlNone, nil

	case bytecode.BuildTuple:
		elts, err := f.popN(int(arg))
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(TupleValue(elts))
		return Value{}, ctrlNone, nil
	case bytecode.BuildList:
		elts, err := f.popN(int(arg))
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(ListValue(elts))
		return Value{}, ctrlNone, nil
	case bytecode.BuildSet:
		elts, err := f.popN(int(arg))
		if err != nil {
			return Value{}, ctrlNone, err
		}
		f.push(Value{Kind: KindSet, Set: &SetObj{Elts: elts}})
		return Value{}, ctrlNone, nil
	case bytecode.BuildMap:
		pairs, err := f.popN(int(arg) * 2)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		d := &DictObj{}
		for i := 0; i < len(pairs); i += 2 {
			d.Set(pairs[i], pairs[i+1])
		}
		f.push(Value{Kind: KindDict, Dict: d})
		return Value{}, ctrlNone, nil
	case bytecode.BuildString:
		parts, err := f.popN(int(arg))
		if err != nil {
			return Value{}, ctrlNone, err
		}
		s := ""
		for _, p := range parts {
			s += displayString(p)
		}
		f.push(StringValue(s))
		return Value{}, ctrlNone, nil
	case bytecode.UnpackSequence:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		elts, err := sequenceElts(v)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		if len(elts) != int(arg) {
			return Value{}, ctrlNone, runtimeError("unpack sequence size mismatch")
		}
		for i := len(elts) - 1; i >= 0; i-- {
			f.push(elts[i])
		}
		return Value{}, ctrlNone, nil
	case bytecode.ListAppend:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		container, err := f.peek(int(arg))
		if err != nil {
			return Value{}, ctrlNone, err
		}
		container.List.Elts = append(container.List.Elts, v)
		return Value{}, ctrlNone, nil
	case bytecode.SetAdd:
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		container, err := f.peek(int(arg))
		if err != nil {
			return Value{}, ctrlNone, err
		}
		container.Set.Elts = append(container.Set.Elts, v)
		return Value{}, ctrlNone, nil
	case bytecode.MapAdd:
		val, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		key, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		container, err := f.peek(int(arg))
		if err != nil {
			return Value{}, ctrlNone, err
		}
		container.Dict.Set(key, val)
		return Value{}, ctrlNone, nil

	case bytecode.LoadBuildClass:
		f.push(NoneValue())
		return Value{}, ctrlNone, nil
	case bytecode.BuildClass:
		bases, err := f.popN(int(arg))
		if err != nil {
			return Value{}, ctrlNone, err
		}
		name, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		codeVal, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		_, err = f.pop() // discard the LOAD_BUILD_CLASS placeholder
		if err != nil {
			return Value{}, ctrlNone, err
		}
		ns, err := m.Run(codeVal.Code, nil)
		if err != nil {
			return Value{}, ctrlNone, err
		}
		_ = bases
		d := &DictObj{}
		d.Set(StringValue("__name__"), name)
		d.Set(StringValue("__dict__"), ns)
		f.push(Value{Kind: KindDict, Dict: d})
		return Value{}, ctrlNone, nil

	case bytecode.ImportName:
		f.push(NoneValue())
		return Value{}, ctrlNone, nil
	case bytecode.ImportFrom:
		f.push(NoneValue())
		return Value{}, ctrlNone, nil
	case bytecode.ImportStar:
		return Value{}, ctrlNone, nil

	case bytecode.SetupExcept:
		f.blocks = append(f.blocks, excBlock{handlerPC: int(arg)})
		return Value{}, ctrlNone, nil
	case bytecode.PopExcept:
		if len(f.blocks) > 0 {
			f.blocks = f.blocks[:len(f.blocks)-1]
		}
		return Value{}, ctrlNone, nil
	case bytecode.RaiseVarargs:
		return m.raise(f, int(arg))
	case bytecode.GetAwaitable:
		return Value{}, ctrlNone, nil
	case bytecode.FormatValue:
		var spec Value
		if arg&0x4 != 0 {
			var err error
			spec, err = f.pop()
			if err != nil {
				return Value{}, ctrlNone, err
			}
		}
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		_ = spec
		f.push(StringValue(displayString(v)))
		return Value{}, ctrlNone, nil
	case bytecode.YieldValue:
		// This VM executes a function to completion in a single Run call;
		// it has no generator-frame suspension. YIELD_VALUE behaves as an
		// immediate RETURN_VALUE of the yielded expression, which is enough
		// to run a generator body once without the full resumable-frame
		// machinery a fuller VM would need.
		v, err := f.pop()
		if err != nil {
			return Value{}, ctrlNone, err
		}
		return v, ctrlReturn, nil

	default:
		return Value{}, ctrlNone, fmt.Errorf("opcode 0x%02x: %w", byte(op), errs.ErrNotImplemented)
	}
}

func (f *frame) popN(n int) ([]Value, error) {
	if n == 0 {
		return nil, nil
	}
	if len(f.stack) < n {
		return nil, errStackUnderflow
	}
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out, nil
}

func sequenceElts(v Value) ([]Value, error) {
	switch v.Kind {
	case KindTuple:
		return v.Tuple, nil
	case KindList:
		return v.List.Elts, nil
	default:
		return nil, typeError("cannot unpack a non-sequence")
	}
}

func lookupByName(f *frame, name string) (Value, bool) {
	for i, vn := range f.code.Varnames {
		if vn == name {
			return f.locals[i], true
		}
	}
	if v, ok := f.globals[name]; ok {
		return v, true
	}
	return Value{}, false
}
