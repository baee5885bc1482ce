package workers

import (
	"context"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/orca/pkg/models"
)

// Rule is one find/replace transformation from the rules file.
type Rule struct {
	Name string `yaml:"name"`
	// Capability limits the rule to units of one kind. Empty means rewrite.
	Capability models.Capability `yaml:"capability"`
	// Files is a glob matched against the project path or the base name.
	// A leading "**/" matches any directory. Empty matches every file.
	Files   string `yaml:"files"`
	Find    string `yaml:"find"`
	Replace string `yaml:"replace"`
	// Regex interprets Find as a regular expression; Replace may use $1.
	Regex bool `yaml:"regex"`

	re *regexp.Regexp
}

// rulesFile is the on-disk layout of the rules file.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads rules from a YAML file. A missing file yields no rules.
func LoadRules(fs afero.Fs, file string) ([]Rule, error) {
	data, err := afero.ReadFile(fs, file)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and compiles a YAML rules document.
func ParseRules(data []byte) ([]Rule, error) {
	var doc rulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	for i := range doc.Rules {
		r := &doc.Rules[i]
		if r.Find == "" {
			return nil, fmt.Errorf("rule %d (%s): find is required", i+1, r.Name)
		}
		if r.Capability == "" {
			r.Capability = models.CapabilityRewrite
		}
		if !r.Capability.Valid() {
			return nil, fmt.Errorf("rule %d (%s): unknown capability %q", i+1, r.Name, r.Capability)
		}
		if r.Files != "" {
			if _, err := path.Match(strings.TrimPrefix(r.Files, "**/"), ""); err != nil {
				return nil, fmt.Errorf("rule %d (%s): bad files pattern: %w", i+1, r.Name, err)
			}
		}
		if r.Regex {
			re, err := regexp.Compile(r.Find)
			if err != nil {
				return nil, fmt.Errorf("rule %d (%s): %w", i+1, r.Name, err)
			}
			r.re = re
		}
	}
	return doc.Rules, nil
}

// matches reports whether the rule applies to file.
func (r *Rule) matches(file string) bool {
	if r.Files == "" {
		return true
	}
	pattern := r.Files
	if strings.HasPrefix(pattern, "**/") {
		pattern = strings.TrimPrefix(pattern, "**/")
		// Match at any depth.
		for p := file; ; {
			if ok, _ := path.Match(pattern, p); ok {
				return true
			}
			i := strings.IndexByte(p, '/')
			if i < 0 {
				return false
			}
			p = p[i+1:]
		}
	}
	if ok, _ := path.Match(pattern, file); ok {
		return true
	}
	ok, _ := path.Match(pattern, path.Base(file))
	return ok
}

// apply returns content with the rule applied and the number of matches.
func (r *Rule) apply(content string) (string, int) {
	if r.re != nil {
		n := len(r.re.FindAllStringIndex(content, -1))
		if n == 0 {
			return content, 0
		}
		return r.re.ReplaceAllString(content, r.Replace), n
	}
	n := strings.Count(content, r.Find)
	if n == 0 {
		return content, 0
	}
	return strings.ReplaceAll(content, r.Find, r.Replace), n
}

// RulesWorker applies find/replace rules to the files of a unit.
type RulesWorker struct {
	files fileReader
	rules []Rule
}

// NewRulesWorker creates a rules worker. Rules must come from ParseRules or
// LoadRules so regular expressions are compiled.
func NewRulesWorker(fs afero.Fs, root string, rules []Rule) *RulesWorker {
	return &RulesWorker{files: fileReader{fs: fs, root: root}, rules: rules}
}

func (w *RulesWorker) Run(ctx context.Context, unit *models.WorkUnit, cb *models.CodebaseContext) (*models.WorkResult, error) {
	res := newResult(unit)

	var active []*Rule
	for i := range w.rules {
		if w.rules[i].Capability == unit.Capability {
			active = append(active, &w.rules[i])
		}
	}
	if len(active) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("no rules for %s", unit.Capability))
		return finish(res), nil
	}

	before := make(map[string]string)
	after := make(map[string]string)
	matched := make(map[string]int)
	for _, file := range unit.Files {
		if canceled(ctx, res) {
			break
		}
		content, exists, err := w.files.read(file)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("read %s: %v", file, err))
			continue
		}
		if !exists {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s does not exist", file))
			continue
		}

		updated := content
		for _, r := range active {
			if !r.matches(file) {
				continue
			}
			var n int
			updated, n = r.apply(updated)
			matched[r.Name] += n
		}
		if fe, changed := contentEdit(file, content, updated, false); changed {
			res.Edits = append(res.Edits, fe)
			before[file], after[file] = content, updated
		}
	}

	res.Analysis = matched
	tally(res, before, after)
	return finish(res), nil
}
