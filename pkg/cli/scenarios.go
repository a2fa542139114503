package cli

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/appscript/pkg/config"
	"github.com/devicelab-dev/appscript/pkg/script"
)

var scenariosCommand = &cli.Command{
	Name:  "scenarios",
	Usage: "List built-in and workspace scenarios",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "scenarios-dir",
			Usage: "Directory searched for scenario files",
		},
	},
	Action: listScenarios,
}

func listScenarios(c *cli.Context) error {
	printf("Built-in scenarios:\n")
	for _, name := range script.BuiltinNames() {
		sc, err := script.Builtin(name)
		if err != nil {
			return err
		}
		marker := " "
		if name == script.DefaultScenario {
			marker = "*"
		}
		printf("  %s %-24s %s\n", marker, name, sc.Description)
	}

	dir := c.String("scenarios-dir")
	if dir == "" {
		dir = config.GetScenariosDir()
	}
	files := scenarioFiles(dir)
	if len(files) == 0 {
		return nil
	}

	printf("\nScenarios in %s:\n", dir)
	for _, f := range files {
		sc, err := script.ParseFile(filepath.Join(dir, f))
		if err != nil {
			printf("    %-24s %s(invalid: %v)%s\n", f, color(colorRed), err, color(colorReset))
			continue
		}
		printf("    %-24s %s\n", sc.Name, sc.Description)
	}
	return nil
}

func scenarioFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files
}
