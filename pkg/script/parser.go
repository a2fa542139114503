package script

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/appscript/pkg/driver/appium"
)

// Scenario is a named, ordered list of steps run against one session.
type Scenario struct {
	Name        string
	Description string
	ServerURL   string // overrides the configured server when set
	Options     appium.Options
	Settings    map[string]interface{} // driver settings applied after connect
	Steps       []Step
	SourcePath  string
}

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

type scenarioFile struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	ServerURL   string                 `yaml:"serverUrl"`
	Options     *appium.Options        `yaml:"options"`
	Settings    map[string]interface{} `yaml:"settings"`
	Steps       []yaml.Node            `yaml:"steps"`
}

// ParseFile parses a scenario YAML file.
func ParseFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided scenario file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses scenario YAML. Without an options block the scenario targets
// the YouTube app.
func Parse(data []byte, sourcePath string) (*Scenario, error) {
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid scenario: %v", err)}
	}
	if len(f.Steps) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "scenario has no steps"}
	}

	sc := &Scenario{
		Name:        f.Name,
		Description: f.Description,
		ServerURL:   f.ServerURL,
		Options:     appium.DefaultYouTubeOptions(),
		Settings:    f.Settings,
		SourcePath:  sourcePath,
	}
	if f.Options != nil {
		sc.Options = *f.Options
	}
	if sc.Name == "" {
		sc.Name = nameFromPath(sourcePath)
	}

	for i := range f.Steps {
		step, err := parseStep(&f.Steps[i], sourcePath)
		if err != nil {
			return nil, err
		}
		sc.Steps = append(sc.Steps, step)
	}
	return sc, nil
}

func nameFromPath(path string) string {
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	for _, ext := range []string{".yaml", ".yml"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Scalar nodes like "- back" carry no parameters
	if node.Kind == yaml.ScalarNode {
		if !isStepType(node.Value) {
			return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: fmt.Sprintf("unknown step type: %s", node.Value)}
		}
		return decodeStep(StepType(node.Value), nil, sourcePath, node.Line)
	}

	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "step must be a single-key mapping or command name"}
	}

	key := node.Content[0].Value
	if !isStepType(key) {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: fmt.Sprintf("unknown step type: %s", key)}
	}

	var value interface{}
	if err := node.Content[1].Decode(&value); err != nil {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: err.Error()}
	}
	return decodeStep(StepType(key), value, sourcePath, node.Line)
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepSwipe, StepTapPoint, StepTap, StepTapLast, StepTypeText, StepPressKey,
		StepHideKeyboard, StepSleep, StepWaitFor, StepDismissAds, StepBack:
		return true
	}
	return false
}

// scalarField is the field a bare scalar value fills, e.g. "tap: Search".
var scalarField = map[StepType]string{
	StepTap:      "accessibilityId",
	StepTapLast:  "text",
	StepTypeText: "input",
	StepPressKey: "key",
	StepSleep:    "duration",
	StepWaitFor:  "accessibilityId",
}

func decodeStep(stepType StepType, value interface{}, sourcePath string, line int) (Step, error) {
	var step Step
	switch stepType {
	case StepSwipe:
		step = &SwipeStep{}
	case StepTapPoint:
		step = &TapPointStep{}
	case StepTap:
		step = &TapStep{}
	case StepTapLast:
		step = &TapLastStep{}
	case StepTypeText:
		step = &TypeStep{}
	case StepPressKey:
		step = &PressKeyStep{}
	case StepHideKeyboard:
		step = &HideKeyboardStep{}
	case StepSleep:
		step = &SleepStep{}
	case StepWaitFor:
		step = &WaitForStep{}
	case StepDismissAds:
		step = &DismissAdsStep{}
	case StepBack:
		step = &BackStep{}
	default:
		return nil, &ParseError{Path: sourcePath, Line: line, Message: fmt.Sprintf("unknown step type: %s", stepType)}
	}

	switch v := value.(type) {
	case nil:
	case map[string]interface{}:
		if err := decodeParams(v, step); err != nil {
			return nil, &ParseError{Path: sourcePath, Line: line, Message: fmt.Sprintf("%s: %v", stepType, err)}
		}
	default:
		field, ok := scalarField[stepType]
		if !ok {
			return nil, &ParseError{Path: sourcePath, Line: line, Message: fmt.Sprintf("%s: expected a mapping, got %v", stepType, v)}
		}
		if err := decodeParams(map[string]interface{}{field: v}, step); err != nil {
			return nil, &ParseError{Path: sourcePath, Line: line, Message: fmt.Sprintf("%s: %v", stepType, err)}
		}
	}

	setStepType(step, stepType)
	return step, nil
}

func decodeParams(params map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			millisToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

// millisToDurationHook reads bare numbers as milliseconds.
func millisToDurationHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	}
	return data, nil
}

func setStepType(step Step, t StepType) {
	if s, ok := step.(interface{ setType(StepType) }); ok {
		s.setType(t)
	}
}
