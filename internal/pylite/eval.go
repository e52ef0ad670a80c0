package pylite

import "strings"

func (in *Interp) eval(f *Frame, e Expr) (Value, error) {
	switch n := e.(type) {
	case *Name:
		return f.lookup(n.ID)

	case *Constant:
		return n.Value, nil

	case *FString:
		var b strings.Builder
		for _, part := range n.Parts {
			if part.Expr == nil {
				b.WriteString(part.Text)
				continue
			}
			v, err := in.eval(f, part.Expr)
			if err != nil {
				return nil, err
			}
			s, err := in.formatField(v, part.Conversion, part.Spec)
			if err != nil {
				return nil, err
			}
			b.WriteString(s)
		}
		return b.String(), nil

	case *BinOp:
		l, err := in.eval(f, n.Left)
		if err != nil {
			return nil, err
		}
		r, err := in.eval(f, n.Right)
		if err != nil {
			return nil, err
		}
		return in.binop(n.Op, l, r, false)

	case *UnaryOp:
		v, err := in.eval(f, n.Operand)
		if err != nil {
			return nil, err
		}
		return in.unary(n.Op, v)

	case *BoolOp:
		var v Value
		for _, operand := range n.Values {
			var err error
			if v, err = in.eval(f, operand); err != nil {
				return nil, err
			}
			t, err := in.truth(v)
			if err != nil {
				return nil, err
			}
			if (n.Op == "or") == t {
				return v, nil
			}
		}
		return v, nil

	case *Compare:
		left, err := in.eval(f, n.Left)
		if err != nil {
			return nil, err
		}
		for i, op := range n.Ops {
			right, err := in.eval(f, n.Comparators[i])
			if err != nil {
				return nil, err
			}
			ok, err := in.compare(op, left, right)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
			left = right
		}
		return true, nil

	case *IfExp:
		ok, err := in.truthExpr(f, n.Cond)
		if err != nil {
			return nil, err
		}
		if ok {
			return in.eval(f, n.Then)
		}
		return in.eval(f, n.Else)

	case *Call:
		return in.evalCall(f, n)

	case *Attribute:
		obj, err := in.eval(f, n.Value)
		if err != nil {
			return nil, err
		}
		return in.getattr(obj, n.Attr)

	case *Subscript:
		obj, err := in.eval(f, n.Value)
		if err != nil {
			return nil, err
		}
		if sl, ok := n.Index.(*Slice); ok {
			lo, hi, step, err := in.evalSlice(f, sl)
			if err != nil {
				return nil, err
			}
			return in.getSlice(obj, lo, hi, step)
		}
		idx, err := in.eval(f, n.Index)
		if err != nil {
			return nil, err
		}
		return in.getitem(obj, idx)

	case *ListExpr:
		items, err := in.evalElts(f, n.Elts)
		if err != nil {
			return nil, err
		}
		return in.newList(items), nil

	case *TupleExpr:
		items, err := in.evalElts(f, n.Elts)
		if err != nil {
			return nil, err
		}
		return in.newTuple(items), nil

	case *SetExpr:
		items, err := in.evalElts(f, n.Elts)
		if err != nil {
			return nil, err
		}
		return in.newSetFrom(items)

	case *DictExpr:
		d := in.newDict()
		for i, k := range n.Keys {
			kv, err := in.eval(f, k)
			if err != nil {
				return nil, err
			}
			vv, err := in.eval(f, n.Values[i])
			if err != nil {
				return nil, err
			}
			if err := d.set(kv, vv); err != nil {
				return nil, err
			}
		}
		return d, nil

	case *Comprehension:
		return in.evalComprehension(f, n)

	case *Lambda:
		return in.makeFunction(f, "<lambda>", n.Params, nil, n.Body)

	case *Slice:
		return nil, newErr(SyntaxErrorClass, "slice outside subscript")

	case *Starred:
		return nil, newErr(SyntaxErrorClass, "can't use starred expression here")
	}
	return nil, newErr(SyntaxErrorClass, "unsupported expression")
}

// evalElts evaluates display elements and call arguments, splicing in the
// items of each starred element.
func (in *Interp) evalElts(f *Frame, exprs []Expr) ([]Value, error) {
	out := make([]Value, 0, len(exprs))
	for _, e := range exprs {
		st, ok := e.(*Starred)
		if !ok {
			v, err := in.eval(f, e)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			continue
		}
		v, err := in.eval(f, st.Value)
		if err != nil {
			return nil, err
		}
		if !in.iterable(v) {
			return nil, newErr(TypeErrorClass, "Value after * must be an iterable, not %s", typeName(v))
		}
		items, err := in.toSlice(v)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func (in *Interp) truthExpr(f *Frame, e Expr) (bool, error) {
	v, err := in.eval(f, e)
	if err != nil {
		return false, err
	}
	return in.truth(v)
}

func (in *Interp) evalCall(f *Frame, n *Call) (Value, error) {
	callee, err := in.eval(f, n.Func)
	if err != nil {
		return nil, err
	}
	args, err := in.evalElts(f, n.Args)
	if err != nil {
		return nil, err
	}
	var kw map[string]Value
	var order []string
	if len(n.Keywords) > 0 {
		kw = make(map[string]Value, len(n.Keywords))
		for _, k := range n.Keywords {
			v, err := in.eval(f, k.Value)
			if err != nil {
				return nil, err
			}
			if k.Name != "" {
				if _, dup := kw[k.Name]; dup {
					return nil, newErr(SyntaxErrorClass, "keyword argument repeated: %s", k.Name)
				}
				kw[k.Name] = v
				order = append(order, k.Name)
				continue
			}
			if order, err = mergeKwargs(kw, order, v); err != nil {
				return nil, err
			}
		}
	}
	if name, ok := n.Func.(*Name); ok && name.ID == "super" && len(args) == 0 {
		if b, ok := callee.(*Builtin); ok && b.Name == "super" {
			return in.super(f)
		}
	}
	in.kwOrder = order
	return in.call(callee, args, kw)
}

// mergeKwargs adds the entries of a `**mapping` argument to kw.
func mergeKwargs(kw map[string]Value, order []string, v Value) ([]string, error) {
	d, ok := v.(*Dict)
	if !ok {
		return order, newErr(TypeErrorClass, "argument after ** must be a mapping, not %s", typeName(v))
	}
	for i, k := range d.keys {
		name, ok := k.(string)
		if !ok {
			return order, newErr(TypeErrorClass, "keywords must be strings")
		}
		if _, dup := kw[name]; dup {
			return order, newErr(TypeErrorClass, "got multiple values for keyword argument '%s'", name)
		}
		kw[name] = d.vals[i]
		order = append(order, name)
	}
	return order, nil
}

func (in *Interp) evalSlice(f *Frame, s *Slice) (lo, hi, step Value, err error) {
	if s.Lo != nil {
		if lo, err = in.eval(f, s.Lo); err != nil {
			return
		}
	}
	if s.Hi != nil {
		if hi, err = in.eval(f, s.Hi); err != nil {
			return
		}
	}
	if s.Step != nil {
		if step, err = in.eval(f, s.Step); err != nil {
			return
		}
	}
	return
}

// evalComprehension runs a comprehension in its own scope so that loop
// variables do not leak into the enclosing frame.
func (in *Interp) evalComprehension(f *Frame, n *Comprehension) (Value, error) {
	outer := f.closureScope()
	cf := &Frame{in: in, locals: newScope(outer), outer: outer, line: f.line}

	var items []Value
	var d *Dict
	if n.Kind == "dict" {
		d = in.newDict()
	}
	var emit func(level int) error
	emit = func(level int) error {
		if level == len(n.Generators) {
			if n.Kind == "dict" {
				k, err := in.eval(cf, n.Elt)
				if err != nil {
					return err
				}
				v, err := in.eval(cf, n.Value)
				if err != nil {
					return err
				}
				return d.set(k, v)
			}
			v, err := in.eval(cf, n.Elt)
			if err != nil {
				return err
			}
			if len(items) >= MaxCollectionLen {
				return errMemory
			}
			items = append(items, v)
			return nil
		}
		gen := n.Generators[level]
		// The outermost iterable is evaluated in the enclosing frame.
		evalFrame := cf
		if level == 0 {
			evalFrame = f
		}
		iterable, err := in.eval(evalFrame, gen.Iter)
		if err != nil {
			return err
		}
		return in.iterate(iterable, func(item Value) (bool, error) {
			if err := in.assign(cf, gen.Target, item); err != nil {
				return false, err
			}
			for _, cond := range gen.Ifs {
				ok, err := in.truthExpr(cf, cond)
				if err != nil {
					return false, err
				}
				if !ok {
					return true, nil
				}
			}
			return true, emit(level + 1)
		})
	}
	if err := emit(0); err != nil {
		return nil, err
	}

	switch n.Kind {
	case "dict":
		return d, nil
	case "set":
		return in.newSetFrom(items)
	}
	return in.newList(items), nil
}
