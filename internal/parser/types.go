package parser

// SymbolKind represents the type of code symbol
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolMethod
	SymbolClass
	SymbolStruct
	SymbolInterface
	SymbolModule
	SymbolConstant
	SymbolVariable
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "func"
	case SymbolMethod:
		return "method"
	case SymbolClass:
		return "class"
	case SymbolStruct:
		return "struct"
	case SymbolInterface:
		return "interface"
	case SymbolModule:
		return "module"
	case SymbolConstant:
		return "const"
	case SymbolVariable:
		return "var"
	default:
		return "unknown"
	}
}

// Symbol is a declaration discovered in a file (function, class, etc.)
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Signature string     `json:"signature,omitempty"` // first line of the declaration
	Parent    string     `json:"parent,omitempty"`    // enclosing class/type, if any
	Line      int        `json:"line"`
}

// FileSymbols holds all symbols extracted from a single file
type FileSymbols struct {
	Path     string
	Language string
	Symbols  []Symbol
	Hash     string // content hash the symbols were computed from
}
