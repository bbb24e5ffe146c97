package registry

import "strings"

// Namespace is a symbol kind tag such as "method" or "class".
type Namespace string

const (
	NamespaceLocal        Namespace = "local"
	NamespaceFunction     Namespace = "function"
	NamespaceMethod       Namespace = "method"
	NamespaceConstructor  Namespace = "constructor"
	NamespacePackage      Namespace = "package"
	NamespaceModule       Namespace = "module"
	NamespaceClass        Namespace = "class"
	NamespaceStruct       Namespace = "struct"
	NamespaceEnum         Namespace = "enum"
	NamespaceEnumConstant Namespace = "enumConstant"
	NamespaceRecord       Namespace = "record"
	NamespaceInterface    Namespace = "interface"
	NamespaceTrait        Namespace = "trait"
	NamespaceTypedef      Namespace = "typedef"
	NamespaceType         Namespace = "type"
	NamespaceField        Namespace = "field"
	NamespaceProperty     Namespace = "property"
	NamespaceConstant     Namespace = "constant"
	NamespaceLabel        Namespace = "label"
	NamespaceLifetime     Namespace = "lifetime"
	NamespaceElement      Namespace = "element"
	NamespaceAttribute    Namespace = "attribute"
	NamespaceSelector     Namespace = "selector"
)

// Taxonomy is a language's ordered namespace list. Order is only an
// iteration order for classification.
type Taxonomy []Namespace

func (t Taxonomy) Contains(ns Namespace) bool {
	return t.Index(ns) >= 0
}

func (t Taxonomy) Index(ns Namespace) int {
	for i, candidate := range t {
		if candidate == ns {
			return i
		}
	}
	return -1
}

// Classify maps a capture name like "name.definition.method" to the taxonomy
// tag named by its right-most dotted segment that the taxonomy knows.
func (t Taxonomy) Classify(captureName string) (Namespace, bool) {
	segments := strings.Split(captureName, ".")
	for i := len(segments) - 1; i >= 0; i-- {
		ns := Namespace(segments[i])
		if t.Contains(ns) {
			return ns, true
		}
	}
	return "", false
}

func (t Taxonomy) Strings() []string {
	out := make([]string, len(t))
	for i, ns := range t {
		out[i] = string(ns)
	}
	return out
}

func taxonomyFromStrings(values []string) Taxonomy {
	seen := make(map[Namespace]bool, len(values))
	out := make(Taxonomy, 0, len(values))
	for _, value := range values {
		ns := Namespace(strings.TrimSpace(value))
		if ns == "" || seen[ns] {
			continue
		}
		seen[ns] = true
		out = append(out, ns)
	}
	return out
}
