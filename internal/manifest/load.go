package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/loomworks/loom/internal/platform"
)

// Load reads every *.cue file in dir and assembles the manifest. All
// problems are collected rather than reported one at a time, so a single
// run surfaces every invalid field.
//
// On success the returned error slice is empty and the Manifest is fully
// validated: unique input and dep names, a buildable source input, and a
// platform set within the supported defaults.
func Load(dir string) (*Manifest, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("accessing manifest directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil || len(matches) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, filepath.Base(m))
	}
	ctx := cuecontext.New()
	instances := load.Instances(files, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	return parse(value, dir)
}

// parse extracts the manifest sections from the evaluated CUE value.
func parse(value cue.Value, dir string) (*Manifest, []error) {
	var errs []error
	m := &Manifest{Dir: dir}

	if app, appErrs := parseApp(value); len(appErrs) > 0 {
		errs = append(errs, appErrs...)
	} else {
		m.App = app
	}

	inputs, inputErrs := parseInputs(value)
	errs = append(errs, inputErrs...)
	m.Inputs = inputs

	deps, depErrs := parseDeps(value)
	errs = append(errs, depErrs...)
	m.Deps = deps

	platforms, platErrs := parsePlatforms(value)
	errs = append(errs, platErrs...)
	m.Platforms = platforms

	errs = append(errs, m.validate()...)
	if len(errs) > 0 {
		return nil, errs
	}
	return m, nil
}

func parseApp(value cue.Value) (AppSpec, []error) {
	var app AppSpec
	v := value.LookupPath(cue.ParsePath("app"))
	if !v.Exists() {
		return app, []error{fieldErr("app", value.Pos(), "app section is required")}
	}

	var errs []error
	app.Name = requireString(v, "app.name", "name", &errs)
	app.Source = requireString(v, "app.source", "source", &errs)

	build := v.LookupPath(cue.ParsePath("build"))
	if !build.Exists() {
		errs = append(errs, fieldErr("app.build", v.Pos(), "build section is required"))
		return app, errs
	}
	app.Build.Executable = requireString(build, "app.build.executable", "executable", &errs)

	cmdVal := build.LookupPath(cue.ParsePath("command"))
	if !cmdVal.Exists() {
		errs = append(errs, fieldErr("app.build.command", build.Pos(), "command is required"))
	} else if err := cmdVal.Decode(&app.Build.Command); err != nil {
		errs = append(errs, fieldErr("app.build.command", cmdVal.Pos(), "must be a list of strings: %v", err))
	} else if len(app.Build.Command) == 0 {
		errs = append(errs, fieldErr("app.build.command", cmdVal.Pos(), "must not be empty"))
	}

	return app, errs
}

func parseInputs(value cue.Value) ([]InputSpec, []error) {
	v := value.LookupPath(cue.ParsePath("inputs"))
	if !v.Exists() {
		return nil, []error{fieldErr("inputs", value.Pos(), "inputs section is required")}
	}

	var errs []error
	var inputs []InputSpec
	iter, err := v.List()
	if err != nil {
		return nil, []error{fieldErr("inputs", v.Pos(), "must be a list: %v", err)}
	}
	for i := 0; iter.Next(); i++ {
		item := iter.Value()
		field := fmt.Sprintf("inputs[%d]", i)
		in := InputSpec{Buildable: true}
		in.Name = requireString(item, field+".name", "name", &errs)
		in.Locator = requireString(item, field+".locator", "locator", &errs)
		if b := item.LookupPath(cue.ParsePath("buildable")); b.Exists() {
			val, err := b.Bool()
			if err != nil {
				errs = append(errs, fieldErr(field+".buildable", b.Pos(), "must be a bool: %v", err))
			} else {
				in.Buildable = val
			}
		}
		inputs = append(inputs, in)
	}
	return inputs, errs
}

func parseDeps(value cue.Value) ([]Dependency, []error) {
	v := value.LookupPath(cue.ParsePath("deps"))
	if !v.Exists() {
		// A manifest with no dependencies is legal; the closure is empty.
		return nil, nil
	}

	var errs []error
	var deps []Dependency
	iter, err := v.List()
	if err != nil {
		return nil, []error{fieldErr("deps", v.Pos(), "must be a list: %v", err)}
	}
	for i := 0; iter.Next(); i++ {
		item := iter.Value()
		field := fmt.Sprintf("deps[%d]", i)
		var d Dependency
		d.Name = requireString(item, field+".name", "name", &errs)
		if r := item.LookupPath(cue.ParsePath("runtime")); r.Exists() {
			val, err := r.Bool()
			if err != nil {
				errs = append(errs, fieldErr(field+".runtime", r.Pos(), "must be a bool: %v", err))
			} else {
				d.Runtime = val
			}
		}
		if ld := item.LookupPath(cue.ParsePath("libDirs")); ld.Exists() {
			raw := map[string]string{}
			if err := ld.Decode(&raw); err != nil {
				errs = append(errs, fieldErr(field+".libDirs", ld.Pos(), "must be a platform-to-path mapping: %v", err))
			} else {
				d.LibDirs = make(map[platform.Platform]string, len(raw))
				for k, dir := range raw {
					p := platform.Platform(k)
					if !p.Known() {
						errs = append(errs, fieldErr(field+".libDirs", ld.Pos(), "unknown platform %q", k))
						continue
					}
					d.LibDirs[p] = dir
				}
			}
		}
		deps = append(deps, d)
	}
	return deps, errs
}

func parsePlatforms(value cue.Value) ([]platform.Platform, []error) {
	v := value.LookupPath(cue.ParsePath("platforms"))
	if !v.Exists() {
		return platform.DefaultSet(), nil
	}

	var errs []error
	var platforms []platform.Platform
	var raw []string
	if err := v.Decode(&raw); err != nil {
		return nil, []error{fieldErr("platforms", v.Pos(), "must be a list of strings: %v", err)}
	}
	for i, s := range raw {
		p := platform.Platform(s)
		if !p.Known() {
			errs = append(errs, fieldErr(fmt.Sprintf("platforms[%d]", i), v.Pos(), "unknown platform %q", s))
			continue
		}
		platforms = append(platforms, p)
	}
	if len(platforms) == 0 && len(errs) == 0 {
		errs = append(errs, fieldErr("platforms", v.Pos(), "must not be empty"))
	}
	return platforms, errs
}

// validate enforces cross-section rules after the sections parse.
func (m *Manifest) validate() []error {
	var errs []error

	seen := map[string]bool{}
	for i, in := range m.Inputs {
		if in.Name == "" {
			continue // already reported by the parser
		}
		if seen[in.Name] {
			errs = append(errs, fieldErr(fmt.Sprintf("inputs[%d].name", i), cuePosNone, "duplicate input name %q", in.Name))
		}
		seen[in.Name] = true
	}

	seenDep := map[string]bool{}
	for i, d := range m.Deps {
		if d.Name == "" {
			continue
		}
		if seenDep[d.Name] {
			errs = append(errs, fieldErr(fmt.Sprintf("deps[%d].name", i), cuePosNone, "duplicate dependency name %q", d.Name))
		}
		seenDep[d.Name] = true
	}

	if m.App.Source != "" {
		src, ok := m.Input(m.App.Source)
		switch {
		case !ok:
			errs = append(errs, fieldErr("app.source", cuePosNone, "references undeclared input %q", m.App.Source))
		case !src.Buildable:
			errs = append(errs, fieldErr("app.source", cuePosNone, "input %q is not buildable", m.App.Source))
		}
	}

	return errs
}

func requireString(v cue.Value, field, key string, errs *[]error) string {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		*errs = append(*errs, fieldErr(field, v.Pos(), "%s is required", key))
		return ""
	}
	s, err := fv.String()
	if err != nil {
		*errs = append(*errs, fieldErr(field, fv.Pos(), "must be a string: %v", err))
		return ""
	}
	if s == "" {
		*errs = append(*errs, fieldErr(field, fv.Pos(), "must not be empty"))
	}
	return s
}
