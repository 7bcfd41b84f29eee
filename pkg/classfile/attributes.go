package classfile

// Attribute is implemented by every structurally modeled attribute type and
// by UnknownAttribute as the round-trip fallback.
type Attribute interface {
	attributeName() string
}

func (a *CodeAttribute) attributeName() string                     { return "Code" }
func (a *LineNumberTableAttribute) attributeName() string           { return "LineNumberTable" }
func (a *LocalVariableTableAttribute) attributeName() string        { return "LocalVariableTable" }
func (a *LocalVariableTypeTableAttribute) attributeName() string    { return "LocalVariableTypeTable" }
func (a *ConstantValueAttribute) attributeName() string             { return "ConstantValue" }
func (a *ExceptionsAttribute) attributeName() string                { return "Exceptions" }
func (a *InnerClassesAttribute) attributeName() string              { return "InnerClasses" }
func (a *EnclosingMethodAttribute) attributeName() string           { return "EnclosingMethod" }
func (a *SyntheticAttribute) attributeName() string                 { return "Synthetic" }
func (a *SignatureAttribute) attributeName() string                 { return "Signature" }
func (a *SourceFileAttribute) attributeName() string                { return "SourceFile" }
func (a *SourceDebugExtensionAttribute) attributeName() string      { return "SourceDebugExtension" }
func (a *DeprecatedAttribute) attributeName() string                { return "Deprecated" }
func (a *AnnotationDefaultAttribute) attributeName() string         { return "AnnotationDefault" }
func (a *BootstrapMethodsAttribute) attributeName() string          { return "BootstrapMethods" }
func (a *MethodParametersAttribute) attributeName() string          { return "MethodParameters" }
func (a *ModuleAttribute) attributeName() string                    { return "Module" }
func (a *ModulePackagesAttribute) attributeName() string            { return "ModulePackages" }
func (a *ModuleMainClassAttribute) attributeName() string           { return "ModuleMainClass" }
func (a *NestHostAttribute) attributeName() string                  { return "NestHost" }
func (a *NestMembersAttribute) attributeName() string               { return "NestMembers" }
func (a *RecordAttribute) attributeName() string                    { return "Record" }
func (a *PermittedSubclassesAttribute) attributeName() string       { return "PermittedSubclasses" }
func (a *UnknownAttribute) attributeName() string                   { return a.Name }

func (a *RuntimeAnnotationsAttribute) attributeName() string {
	if a.Visible {
		return "RuntimeVisibleAnnotations"
	}
	return "RuntimeInvisibleAnnotations"
}

func (a *RuntimeParameterAnnotationsAttribute) attributeName() string {
	if a.Visible {
		return "RuntimeVisibleParameterAnnotations"
	}
	return "RuntimeInvisibleParameterAnnotations"
}

func (a *RuntimeTypeAnnotationsAttribute) attributeName() string {
	if a.Visible {
		return "RuntimeVisibleTypeAnnotations"
	}
	return "RuntimeInvisibleTypeAnnotations"
}
