package synth

// ActionKind selects how a planned command is bound to an action.
type ActionKind string

const (
	ActionOpen           ActionKind = "open"
	ActionEdit           ActionKind = "edit"
	ActionExecute        ActionKind = "execute"
	ActionAnalyze        ActionKind = "analyze"
	ActionValidate       ActionKind = "validate"
	ActionShell          ActionKind = "shell"
	ActionInvokeSymbol   ActionKind = "invoke-symbol"
	ActionInitialize     ActionKind = "initialize"
	ActionRunScript      ActionKind = "run-script"
	ActionDependencyInfo ActionKind = "dependency-info"
)

// Template is a data description of one command. Name, Description and
// every Argv element may contain placeholders: {file}, {base}, {ext},
// {key}, {path}, {rel}, {dir}, {language}; symbol templates add {symbol}
// and {symbolkind}; manifest templates add {runner}, {scope}, {script} and
// {dependency}.
type Template struct {
	Name        string
	Description string
	Kind        ActionKind
	Argv        []string
	Categories  []string
	Weight      float64
}

// Templates maps language tags to their extra templates. Every language
// also receives the universal set.
type Templates struct {
	Universal  []Template
	ByLanguage map[string][]Template

	Init       Template // replaces symbol commands for empty files
	Symbol     Template // one per distinct discovered symbol
	Script     Template // one per manifest script
	Dependency Template // one per declared dependency
}

// For returns the universal templates followed by language's extras.
func (t *Templates) For(language string) []Template {
	out := make([]Template, 0, len(t.Universal)+len(t.ByLanguage[language]))
	out = append(out, t.Universal...)
	return append(out, t.ByLanguage[language]...)
}

func shell(name, description string, argv ...string) Template {
	return Template{Name: name, Description: description, Kind: ActionShell, Argv: argv, Categories: []string{"lint"}}
}

// DefaultTemplates returns the built-in template sets.
func DefaultTemplates() *Templates {
	return &Templates{
		Universal: []Template{
			{Name: "open-{key}", Description: "Open {rel}", Kind: ActionOpen, Categories: []string{"file"}},
			{Name: "edit-{key}", Description: "Edit {rel} in the configured editor", Kind: ActionEdit, Categories: []string{"file"}},
			{Name: "run-{key}", Description: "Run {rel} with the {language} interpreter", Kind: ActionExecute, Categories: []string{"file"}},
			{Name: "analyze-{key}", Description: "Analyze {rel}", Kind: ActionAnalyze, Categories: []string{"file"}},
		},
		ByLanguage: map[string][]Template{
			"go": {
				shell("vet-{key}", "Run go vet on the package of {rel}", "go", "vet", "./{dir}"),
				shell("fmt-{key}", "List formatting differences in {rel}", "gofmt", "-l", "{path}"),
			},
			"javascript": {
				shell("check-{key}", "Syntax check {rel} with node", "node", "--check", "{path}"),
			},
			"typescript": {
				shell("typecheck-{key}", "Type check {rel} with tsc", "npx", "tsc", "--noEmit", "{path}"),
			},
			"python": {
				shell("compile-{key}", "Byte-compile {rel}", "python3", "-m", "py_compile", "{path}"),
			},
			"ruby": {
				shell("syntax-{key}", "Syntax check {rel} with ruby", "ruby", "-c", "{path}"),
			},
			"shell": {
				shell("lint-{key}", "Parse {rel} without running it", "sh", "-n", "{path}"),
			},
			"json": {
				{Name: "validate-{key}", Description: "Validate {rel} as JSON", Kind: ActionValidate, Categories: []string{"lint"}},
			},
			"yaml": {
				{Name: "validate-{key}", Description: "Validate {rel} as YAML", Kind: ActionValidate, Categories: []string{"lint"}},
			},
			"toml": {
				{Name: "validate-{key}", Description: "Validate {rel} as TOML", Kind: ActionValidate, Categories: []string{"lint"}},
			},
		},
		Init: Template{
			Name:        "init-{key}",
			Description: "Initialize empty {rel} with a {language} starter",
			Kind:        ActionInitialize,
			Categories:  []string{"init"},
		},
		Symbol: Template{
			Name:        "call-{key}-{symbol}",
			Description: "Invoke {symbolkind} {symbol} in {rel}",
			Kind:        ActionInvokeSymbol,
			Categories:  []string{"symbol"},
			Weight:      1.2,
		},
		Script: Template{
			Name:        "{runner}-{scope}{script}",
			Description: "Run {runner} script {script} from {rel}",
			Kind:        ActionRunScript,
			Categories:  []string{"script"},
			Weight:      1.5,
		},
		Dependency: Template{
			Name:        "use-{scope}{dependency}",
			Description: "Show dependency {dependency} declared in {rel}",
			Kind:        ActionDependencyInfo,
			Categories:  []string{"dependency"},
			Weight:      0.8,
		},
	}
}

// interpreters gives the argv prefix used to execute a file per language.
var interpreters = map[string][]string{
	"go":         {"go", "run"},
	"javascript": {"node"},
	"typescript": {"npx", "tsx"},
	"python":     {"python3"},
	"ruby":       {"ruby"},
	"shell":      {"sh"},
	"perl":       {"perl"},
	"php":        {"php"},
	"lua":        {"lua"},
	"make":       {"make", "-f"},
}

// Interpreter returns the argv prefix that executes files of language.
func Interpreter(language string) ([]string, bool) {
	argv, ok := interpreters[language]
	if !ok {
		return nil, false
	}
	return append([]string(nil), argv...), true
}
