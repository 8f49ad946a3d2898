package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/cmdtrack/internal/fileutil"
	"github.com/morozRed/cmdtrack/internal/registry"
)

func RunList(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd, args)
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	var filter registry.Filter
	if filter.Category, err = OptionalStringFlag(cmd, "category"); err != nil {
		return err
	}
	if filter.Tag, err = OptionalStringFlag(cmd, "tag"); err != nil {
		return err
	}
	if filter.Search, err = OptionalStringFlag(cmd, "filter"); err != nil {
		return err
	}
	owner, err := OptionalStringFlag(cmd, "owner")
	if err != nil {
		return err
	}

	s, err := openSession(cmd, rootPath, "", asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	if owner != "" {
		filter.Owner = s.ownerPath(owner)
	}
	return printDescriptors(s.engine.GetCommands(filter), rootPath, asJSON)
}

func RunSearch(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd, nil)
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	limit, err := OptionalIntFlag(cmd, "limit", 10)
	if err != nil {
		return err
	}
	if limit < 1 {
		return fmt.Errorf("--limit must be >= 1")
	}

	s, err := openSession(cmd, rootPath, "", asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	return printDescriptors(s.engine.SearchCommands(args[0], limit), rootPath, asJSON)
}

// RunCommand executes one registered command and prints what it returned.
// Unknown names fail with the closest suggestions.
func RunCommand(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd, nil)
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, rootPath, "", asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	res := s.engine.ExecuteCommand(commandContext(cmd), args[0], args[1:]...)
	if asJSON {
		if err := fileutil.PrintJSON(os.Stdout, res); err != nil {
			return err
		}
	} else if res.OK {
		printValue(res.Value)
	}

	switch {
	case !res.Found && len(res.Suggestions) > 0:
		return fmt.Errorf("unknown command %q (did you mean: %s)", res.Name, strings.Join(res.Suggestions, ", "))
	case !res.Found:
		return fmt.Errorf("unknown command %q", res.Name)
	case !res.OK:
		if !asJSON {
			printValue(res.Value)
		}
		return fmt.Errorf("%s failed: %s", res.Name, res.Error)
	}
	return nil
}

// ownerPath accepts an owner given relative to the root.
func (s *session) ownerPath(owner string) string {
	for _, file := range s.engine.GetTrackedFiles() {
		if file.RelPath == owner || file.Path == owner {
			return file.Path
		}
	}
	return owner
}

func printDescriptors(descriptors []registry.Descriptor, rootPath string, asJSON bool) error {
	if asJSON {
		if descriptors == nil {
			descriptors = []registry.Descriptor{}
		}
		return fileutil.PrintJSON(os.Stdout, descriptors)
	}
	for _, d := range descriptors {
		owner := "-"
		if d.Owner != "" {
			owner = relativeTo(rootPath, d.Owner)
		}
		fmt.Printf("%s\t%s\t%s\n", d.Name, owner, d.Description)
	}
	return nil
}

func printValue(value any) {
	switch v := value.(type) {
	case nil:
	case string:
		fmt.Print(v)
		if v != "" && !strings.HasSuffix(v, "\n") {
			fmt.Println()
		}
	case fmt.Stringer:
		printValue(v.String())
	default:
		_ = fileutil.PrintJSON(os.Stdout, v)
	}
}
