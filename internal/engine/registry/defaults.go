package registry

import "rangefinder/internal/engine/syntax"

// Identifier/block queries name the identifier capture first and the block
// capture second; projection relies on that declaration order.

const javaMethodQuery = `
(method_declaration
  name: (identifier) @name.definition.method) @definition.method
`

const javaClassQuery = `
(class_declaration
  name: (identifier) @name.definition.class) @definition.class

(interface_declaration
  name: (identifier) @name.definition.interface) @definition.interface

(enum_declaration
  name: (identifier) @name.definition.enum) @definition.enum

(record_declaration
  name: (identifier) @name.definition.record) @definition.record
`

const javaHoverableQuery = `
[(identifier)
 (type_identifier)] @hoverable
`

const javaStructureQuery = `
(package_declaration
  [(scoped_identifier) (identifier)] @package-name)

(import_declaration
  [(scoped_identifier) (identifier)] @import-name)

(method_declaration
  type: (_) @method-returnType
  name: (identifier) @method-name
  parameters: (formal_parameters) @method-params
  body: (block)? @method-body)

(class_declaration
  name: (identifier) @class-name
  interfaces: (super_interfaces (type_list (type_identifier) @impl-name))?
  body: (class_body) @class-body)
`

const javaMethodIOQuery = `
(method_declaration
  type: (_) @returnType
  name: (identifier) @id
  parameters: (formal_parameters
    (formal_parameter
      type: (_) @param.type
      name: (identifier) @param.value) @param))
`

const goMethodQuery = `
(function_declaration
  name: (identifier) @name.definition.function) @definition.function

(method_declaration
  name: (field_identifier) @name.definition.method) @definition.method
`

const goClassQuery = `
(type_spec
  name: (type_identifier) @name.definition.struct
  type: (struct_type)) @definition.struct

(type_spec
  name: (type_identifier) @name.definition.interface
  type: (interface_type)) @definition.interface
`

const goHoverableQuery = `
[(identifier)
 (type_identifier)
 (field_identifier)
 (package_identifier)] @hoverable
`

const goStructureQuery = `
(package_clause
  (package_identifier) @package-name)

(import_spec
  path: (_) @import-name)

(function_declaration
  name: (identifier) @function-name
  parameters: (parameter_list) @function-params
  result: (_)? @function-returnType
  body: (block)? @function-body)

(method_declaration
  receiver: (parameter_list) @method-receiver
  name: (field_identifier) @method-name
  parameters: (parameter_list) @method-params
  result: (_)? @method-returnType
  body: (block)? @method-body)

(type_spec
  name: (type_identifier) @type-name
  type: (_) @type-body)
`

const goMethodIOQuery = `
(function_declaration
  name: (identifier) @id
  parameters: (parameter_list) @params
  result: (_)? @returnType)

(method_declaration
  name: (field_identifier) @id
  parameters: (parameter_list) @params
  result: (_)? @returnType)
`

const pythonMethodQuery = `
(function_definition
  name: (identifier) @name.definition.function) @definition.function
`

const pythonClassQuery = `
(class_definition
  name: (identifier) @name.definition.class) @definition.class
`

const pythonHoverableQuery = `
(identifier) @hoverable
`

const pythonStructureQuery = `
(import_statement
  name: (_) @import-name)

(import_from_statement
  module_name: (_) @import-module)

(class_definition
  name: (identifier) @class-name
  superclasses: (argument_list)? @class-bases
  body: (block) @class-body)

(function_definition
  name: (identifier) @function-name
  parameters: (parameters) @function-params
  return_type: (type)? @function-returnType
  body: (block) @function-body)
`

const pythonMethodIOQuery = `
(function_definition
  name: (identifier) @id
  parameters: (parameters) @params
  return_type: (type)? @returnType)
`

const javascriptMethodQuery = `
(function_declaration
  name: (identifier) @name.definition.function) @definition.function

(generator_function_declaration
  name: (identifier) @name.definition.function) @definition.function

(method_definition
  name: (_) @name.definition.method) @definition.method
`

const javascriptClassQuery = `
(class_declaration
  name: (identifier) @name.definition.class) @definition.class
`

const javascriptHoverableQuery = `
[(identifier)
 (property_identifier)] @hoverable
`

const javascriptStructureQuery = `
(import_statement
  source: (string) @import-name)

(class_declaration
  name: (identifier) @class-name
  body: (class_body) @class-body)

(function_declaration
  name: (identifier) @function-name
  parameters: (formal_parameters) @function-params
  body: (statement_block) @function-body)
`

const javascriptMethodIOQuery = `
(function_declaration
  name: (identifier) @id
  parameters: (formal_parameters) @params)

(method_definition
  name: (_) @id
  parameters: (formal_parameters) @params)
`

const typescriptMethodQuery = `
(function_declaration
  name: (identifier) @name.definition.function) @definition.function

(method_definition
  name: (_) @name.definition.method) @definition.method

(method_signature
  name: (_) @name.definition.method) @definition.method
`

const typescriptClassQuery = `
(class_declaration
  name: (type_identifier) @name.definition.class) @definition.class

(abstract_class_declaration
  name: (type_identifier) @name.definition.class) @definition.class

(interface_declaration
  name: (type_identifier) @name.definition.interface) @definition.interface

(enum_declaration
  name: (identifier) @name.definition.enum) @definition.enum
`

const typescriptHoverableQuery = `
[(identifier)
 (type_identifier)
 (property_identifier)] @hoverable
`

const typescriptStructureQuery = `
(import_statement
  source: (string) @import-name)

(class_declaration
  name: (type_identifier) @class-name
  body: (class_body) @class-body)

(interface_declaration
  name: (type_identifier) @interface-name
  body: (interface_body) @interface-body)

(type_alias_declaration
  name: (type_identifier) @type-name
  value: (_) @type-body)

(function_declaration
  name: (identifier) @function-name
  parameters: (formal_parameters) @function-params
  return_type: (type_annotation)? @function-returnType
  body: (statement_block) @function-body)
`

const typescriptMethodIOQuery = `
(function_declaration
  name: (identifier) @id
  parameters: (formal_parameters) @params
  return_type: (type_annotation)? @returnType)

(method_definition
  name: (_) @id
  parameters: (formal_parameters) @params
  return_type: (type_annotation)? @returnType)
`

const rustMethodQuery = `
(function_item
  name: (identifier) @name.definition.function) @definition.function

(function_signature_item
  name: (identifier) @name.definition.function) @definition.function
`

const rustClassQuery = `
(struct_item
  name: (type_identifier) @name.definition.struct) @definition.struct

(enum_item
  name: (type_identifier) @name.definition.enum) @definition.enum

(trait_item
  name: (type_identifier) @name.definition.trait) @definition.trait

(union_item
  name: (type_identifier) @name.definition.struct) @definition.struct
`

const rustHoverableQuery = `
[(identifier)
 (type_identifier)
 (field_identifier)] @hoverable
`

const rustStructureQuery = `
(use_declaration
  argument: (_) @import-name)

(mod_item
  name: (identifier) @module-name)

(impl_item
  trait: (_)? @impl-name
  type: (_) @impl-type
  body: (declaration_list) @impl-body)

(function_item
  name: (identifier) @function-name
  parameters: (parameters) @function-params
  return_type: (_)? @function-returnType
  body: (block) @function-body)
`

const rustMethodIOQuery = `
(function_item
  name: (identifier) @id
  parameters: (parameters) @params
  return_type: (_)? @returnType)
`

const htmlHoverableQuery = `
[(tag_name)
 (attribute_name)] @hoverable
`

const htmlStructureQuery = `
(element
  (start_tag
    (tag_name) @element-name)) @element-body
`

const cssHoverableQuery = `
[(class_name)
 (id_name)
 (property_name)
 (tag_name)] @hoverable
`

const cssStructureQuery = `
(import_statement) @import-name

(rule_set
  (selectors) @selector-name
  (block) @selector-body)
`

// DefaultDefinitions returns the built-in language table. Each call returns
// fresh maps and slices the caller may modify.
func DefaultDefinitions() map[string]Definition {
	typescriptQueries := func() map[Capability]string {
		return map[Capability]string{
			CapabilityMethod:    typescriptMethodQuery,
			CapabilityClass:     typescriptClassQuery,
			CapabilityHoverable: typescriptHoverableQuery,
			CapabilityStructure: typescriptStructureQuery,
			CapabilityMethodIO:  typescriptMethodIOQuery,
		}
	}
	typescriptNamespaces := Taxonomy{
		NamespaceLocal, NamespaceFunction, NamespaceMethod, NamespaceModule,
		NamespaceClass, NamespaceInterface, NamespaceEnum, NamespaceType, NamespaceProperty,
	}

	return map[string]Definition{
		"java": {
			ID:         "java",
			Extensions: []string{".java"},
			Grammar:    syntax.GrammarSource{Name: "java"},
			Queries: map[Capability]string{
				CapabilityMethod:    javaMethodQuery,
				CapabilityClass:     javaClassQuery,
				CapabilityHoverable: javaHoverableQuery,
				CapabilityStructure: javaStructureQuery,
				CapabilityMethodIO:  javaMethodIOQuery,
			},
			Namespaces: Taxonomy{
				NamespaceLocal,
				NamespaceMethod,
				NamespacePackage, NamespaceModule,
				NamespaceClass, NamespaceEnum, NamespaceEnumConstant, NamespaceRecord, NamespaceInterface, NamespaceTypedef,
				NamespaceLabel,
			},
			Enabled: true,
		},
		"go": {
			ID:         "go",
			Extensions: []string{".go"},
			Grammar:    syntax.GrammarSource{Name: "go"},
			Queries: map[Capability]string{
				CapabilityMethod:    goMethodQuery,
				CapabilityClass:     goClassQuery,
				CapabilityHoverable: goHoverableQuery,
				CapabilityStructure: goStructureQuery,
				CapabilityMethodIO:  goMethodIOQuery,
			},
			Namespaces: Taxonomy{
				NamespaceLocal, NamespaceFunction, NamespaceMethod, NamespacePackage,
				NamespaceStruct, NamespaceInterface, NamespaceType, NamespaceField, NamespaceConstant, NamespaceLabel,
			},
			Enabled: true,
		},
		"python": {
			ID:         "python",
			Extensions: []string{".py", ".pyi"},
			Grammar:    syntax.GrammarSource{Name: "python"},
			Queries: map[Capability]string{
				CapabilityMethod:    pythonMethodQuery,
				CapabilityClass:     pythonClassQuery,
				CapabilityHoverable: pythonHoverableQuery,
				CapabilityStructure: pythonStructureQuery,
				CapabilityMethodIO:  pythonMethodIOQuery,
			},
			Namespaces: Taxonomy{
				NamespaceLocal, NamespaceFunction, NamespaceMethod, NamespaceModule, NamespaceClass, NamespaceField,
			},
			Enabled: true,
		},
		"javascript": {
			ID:         "javascript",
			Extensions: []string{".js", ".cjs", ".mjs", ".jsx"},
			Grammar:    syntax.GrammarSource{Name: "javascript"},
			Queries: map[Capability]string{
				CapabilityMethod:    javascriptMethodQuery,
				CapabilityClass:     javascriptClassQuery,
				CapabilityHoverable: javascriptHoverableQuery,
				CapabilityStructure: javascriptStructureQuery,
				CapabilityMethodIO:  javascriptMethodIOQuery,
			},
			Namespaces: Taxonomy{
				NamespaceLocal, NamespaceFunction, NamespaceMethod, NamespaceModule, NamespaceClass, NamespaceProperty,
			},
			Enabled: true,
		},
		"typescript": {
			ID:         "typescript",
			Extensions: []string{".ts", ".mts", ".cts"},
			Grammar:    syntax.GrammarSource{Name: "typescript"},
			Queries:    typescriptQueries(),
			Namespaces: append(Taxonomy(nil), typescriptNamespaces...),
			Enabled:    true,
		},
		"tsx": {
			ID:         "tsx",
			Extensions: []string{".tsx"},
			Grammar:    syntax.GrammarSource{Name: "tsx"},
			Queries:    typescriptQueries(),
			Namespaces: append(Taxonomy(nil), typescriptNamespaces...),
			Enabled:    true,
		},
		"rust": {
			ID:         "rust",
			Extensions: []string{".rs"},
			Grammar:    syntax.GrammarSource{Name: "rust"},
			Queries: map[Capability]string{
				CapabilityMethod:    rustMethodQuery,
				CapabilityClass:     rustClassQuery,
				CapabilityHoverable: rustHoverableQuery,
				CapabilityStructure: rustStructureQuery,
				CapabilityMethodIO:  rustMethodIOQuery,
			},
			Namespaces: Taxonomy{
				NamespaceLocal, NamespaceFunction, NamespaceMethod, NamespaceModule,
				NamespaceStruct, NamespaceEnum, NamespaceTrait, NamespaceType, NamespaceField, NamespaceConstant, NamespaceLifetime, NamespaceLabel,
			},
			Enabled: true,
		},
		"html": {
			ID:         "html",
			Extensions: []string{".html", ".htm"},
			Grammar:    syntax.GrammarSource{Name: "html"},
			Queries: map[Capability]string{
				CapabilityHoverable: htmlHoverableQuery,
				CapabilityStructure: htmlStructureQuery,
			},
			Namespaces: Taxonomy{NamespaceElement, NamespaceAttribute},
			Enabled:    true,
		},
		"css": {
			ID:         "css",
			Extensions: []string{".css"},
			Grammar:    syntax.GrammarSource{Name: "css"},
			Queries: map[Capability]string{
				CapabilityHoverable: cssHoverableQuery,
				CapabilityStructure: cssStructureQuery,
			},
			Namespaces: Taxonomy{NamespaceSelector, NamespaceProperty},
			Enabled:    true,
		},
	}
}
