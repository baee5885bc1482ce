// Package codebase describes the project under edit: its type, languages,
// frameworks, and the commands that build, test, and lint it.
package codebase

import (
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/orca/pkg/models"
)

// packageJSON is the subset of package.json that detection reads.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

// all returns runtime and dev dependencies together.
func (p *packageJSON) all() map[string]bool {
	deps := make(map[string]bool, len(p.Dependencies)+len(p.DevDependencies))
	for name := range p.Dependencies {
		deps[name] = true
	}
	for name := range p.DevDependencies {
		deps[name] = true
	}
	return deps
}

// Detector inspects a project directory through fs.
type Detector struct {
	fs   afero.Fs
	root string
}

// NewDetector creates a detector for the project at root.
func NewDetector(fs afero.Fs, root string) *Detector {
	return &Detector{fs: fs, root: root}
}

// Detect returns the codebase context of the project.
func Detect(fs afero.Fs, root string) *models.CodebaseContext {
	return NewDetector(fs, root).Detect()
}

// Detect returns the codebase context of the project. Marker files are
// checked in order of specificity; package.json is checked last since it is
// common alongside other project types.
func (d *Detector) Detect() *models.CodebaseContext {
	cb := &models.CodebaseContext{Root: d.root, ProjectType: models.ProjectUnknown}
	pkg := d.readPackageJSON()

	switch {
	case d.fileExists("go.mod"):
		cb.ProjectType = models.ProjectGo
	case d.fileExists("Cargo.toml"):
		cb.ProjectType = models.ProjectRust
	case d.fileExists("pyproject.toml") || d.fileExists("setup.py") || d.fileExists("requirements.txt"):
		cb.ProjectType = models.ProjectPython
	case pkg != nil:
		deps := pkg.all()
		switch {
		case deps["react"] && deps["express"]:
			cb.ProjectType = models.ProjectFullstack
		case deps["react"]:
			cb.ProjectType = models.ProjectReact
		default:
			cb.ProjectType = models.ProjectNode
		}
	}

	cb.Languages = d.languages(pkg)
	d.describeNode(cb, pkg)
	d.describeCommands(cb, pkg)
	return cb
}

func (d *Detector) languages(pkg *packageJSON) []string {
	var langs []string
	if d.fileExists("go.mod") {
		langs = append(langs, "go")
	}
	if d.fileExists("Cargo.toml") {
		langs = append(langs, "rust")
	}
	if d.fileExists("pyproject.toml") || d.fileExists("setup.py") || d.fileExists("requirements.txt") {
		langs = append(langs, "python")
	}
	switch {
	case d.fileExists("tsconfig.json"):
		langs = append(langs, "typescript")
	case pkg != nil:
		langs = append(langs, "javascript")
	}
	sort.Strings(langs)
	return langs
}

var (
	frameworkDeps = []struct{ dep, name string }{
		{"react", "react"},
		{"vue", "vue"},
		{"@angular/core", "angular"},
		{"express", "express"},
		{"@nestjs/core", "nestjs"},
		{"next", "nextjs"},
	}
	testDeps  = []string{"jest", "mocha", "vitest", "cypress"}
	buildDeps = []string{"webpack", "vite", "rollup", "parcel"}
)

// describeNode fills frameworks, test framework, style guide, build system
// and dependencies from package.json and lint configuration files.
func (d *Detector) describeNode(cb *models.CodebaseContext, pkg *packageJSON) {
	if pkg != nil {
		deps := pkg.all()
		for _, f := range frameworkDeps {
			if deps[f.dep] {
				cb.Frameworks = append(cb.Frameworks, f.name)
			}
		}
		for _, name := range testDeps {
			if deps[name] {
				cb.TestFramework = name
				break
			}
		}
		for _, name := range buildDeps {
			if deps[name] {
				cb.BuildSystem = name
				break
			}
		}
		for name := range pkg.Dependencies {
			cb.Dependencies = append(cb.Dependencies, name)
		}
		sort.Strings(cb.Dependencies)
	}

	switch {
	case d.fileExists(".eslintrc.js") || d.fileExists(".eslintrc.json") || d.fileExists(".eslintrc") || d.fileExists("eslint.config.js"):
		cb.StyleGuide = "eslint"
	case d.fileExists(".prettierrc") || d.fileExists(".prettierrc.json"):
		cb.StyleGuide = "prettier"
	case cb.ProjectType == models.ProjectGo:
		cb.StyleGuide = "gofmt"
	}
}

// describeCommands picks the build, test and lint commands for the project.
func (d *Detector) describeCommands(cb *models.CodebaseContext, pkg *packageJSON) {
	switch cb.ProjectType {
	case models.ProjectGo:
		cb.BuildCommand = []string{"go", "build", "./..."}
		cb.TestCommand = []string{"go", "test", "./..."}
		cb.LintCommand = []string{"go", "vet", "./..."}
		if cb.TestFramework == "" {
			cb.TestFramework = "go test"
		}

	case models.ProjectNode, models.ProjectReact, models.ProjectFullstack:
		if pkg.Scripts["build"] != "" {
			cb.BuildCommand = []string{"npm", "run", "build"}
		} else if d.fileExists("tsconfig.json") {
			cb.BuildCommand = []string{"npx", "tsc", "--noEmit"}
		}
		if pkg.Scripts["test"] != "" {
			cb.TestCommand = []string{"npm", "test"}
		}
		if pkg.Scripts["lint"] != "" {
			cb.LintCommand = []string{"npm", "run", "lint"}
		}

	case models.ProjectRust:
		cb.BuildCommand = []string{"cargo", "build"}
		cb.TestCommand = []string{"cargo", "test"}

	case models.ProjectPython:
		if d.dirExists("tests") {
			cb.TestCommand = []string{"python", "-m", "pytest"}
			if cb.TestFramework == "" {
				cb.TestFramework = "pytest"
			}
		}
	}
}

// readPackageJSON returns nil when package.json is missing or unreadable.
func (d *Detector) readPackageJSON() *packageJSON {
	data, err := afero.ReadFile(d.fs, filepath.Join(d.root, "package.json"))
	if err != nil {
		return nil
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return &packageJSON{}
	}
	return &pkg
}

func (d *Detector) fileExists(name string) bool {
	info, err := d.fs.Stat(filepath.Join(d.root, name))
	return err == nil && !info.IsDir()
}

func (d *Detector) dirExists(name string) bool {
	info, err := d.fs.Stat(filepath.Join(d.root, name))
	return err == nil && info.IsDir()
}
