package vm

import (
	"fmt"
	"strings"

	"github.com/vireo-vm/vireo/pkg/classfile"
	"github.com/vireo-vm/vireo/pkg/classloader"
)

// packageOf returns a binary class name's package: everything before the
// last '/', or "" for the unnamed package — the unit package-private
// access (section 5.4.4) is scoped to.
func packageOf(className string) string {
	if i := strings.LastIndex(className, "/"); i >= 0 {
		return className[:i]
	}
	return ""
}

// accessAllowed implements the member access control algorithm of
// section 5.4.4: public members are always reachable; private members
// only from the declaring class itself; protected members from the
// declaring class's package or from a subclass of it; package-private
// members only from the same package as the declaring class.
func accessAllowed(flags uint16, caller, decl *classloader.Class) (bool, error) {
	switch {
	case flags&classfile.AccPublic != 0:
		return true, nil
	case flags&classfile.AccPrivate != 0:
		return caller == decl, nil
	case flags&classfile.AccProtected != 0:
		if packageOf(caller.Name()) == packageOf(decl.Name()) {
			return true, nil
		}
		return caller.IsSubclassOf(decl)
	default: // package-private
		return packageOf(caller.Name()) == packageOf(decl.Name()), nil
	}
}

// checkFieldAccess enforces accessAllowed for getfield/putfield/
// getstatic/putstatic, given the class that declares the field (not
// necessarily the class named at the fieldref, which resolveFieldOwner
// already walked to find).
func (v *VM) checkFieldAccess(caller, decl *classloader.Class, field *classfile.FieldInfo, name string) error {
	ok, err := accessAllowed(field.AccessFlags, caller, decl)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("class %s cannot access field %s.%s", caller.Name(), decl.Name(), name)
	}
	return nil
}

// checkMethodAccess enforces accessAllowed for invokevirtual/invokespecial/
// invokestatic/invokeinterface, given the class that declares the
// resolved method.
func (v *VM) checkMethodAccess(caller, decl *classloader.Class, method *classfile.MethodInfo) error {
	name, _ := decl.File().Pool.Utf8At(method.NameIndex)
	ok, err := accessAllowed(method.AccessFlags, caller, decl)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("class %s cannot access method %s.%s", caller.Name(), decl.Name(), name)
	}
	return nil
}
