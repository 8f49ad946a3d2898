package synth

import (
	"os/exec"
	"sort"
)

// Capability reports whether run- commands for a language can work on this
// machine.
type Capability struct {
	Present     bool   `json:"present"`
	Interpreter string `json:"interpreter"`
	Available   bool   `json:"available"`
	Reason      string `json:"reason,omitempty"`
}

// DetectLanguagePresence marks every interpreted language that occurs in
// languages. Languages without an interpreter are not reported.
func DetectLanguagePresence(languages []string) map[string]bool {
	presence := make(map[string]bool, len(interpreters))
	for language := range interpreters {
		presence[language] = false
	}
	for _, language := range languages {
		if _, ok := interpreters[language]; ok {
			presence[language] = true
		}
	}
	return presence
}

func ProbeInterpreters(presence map[string]bool) map[string]Capability {
	return ProbeInterpretersWithLookPath(presence, exec.LookPath)
}

func ProbeInterpretersWithLookPath(presence map[string]bool, lookPath func(file string) (string, error)) map[string]Capability {
	capabilities := make(map[string]Capability, len(interpreters))
	for language, argv := range interpreters {
		capability := Capability{Present: presence[language], Interpreter: argv[0]}
		if !capability.Present {
			capability.Reason = "language_not_present"
			capabilities[language] = capability
			continue
		}
		if _, err := lookPath(argv[0]); err == nil {
			capability.Available = true
		} else {
			capability.Reason = "interpreter_not_found"
		}
		capabilities[language] = capability
	}
	return capabilities
}

// InterpretedLanguages returns the languages that have a run- interpreter,
// sorted.
func InterpretedLanguages() []string {
	out := make([]string, 0, len(interpreters))
	for language := range interpreters {
		out = append(out, language)
	}
	sort.Strings(out)
	return out
}
