package symbols

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/levelup-tools/levelup/pkg/constants"
	"github.com/levelup-tools/levelup/pkg/errorkinds"
	"github.com/levelup-tools/levelup/pkg/procrunner"
)

// doxyfileDefaults is the baseline Doxygen configuration, expressed as YAML
// so it reads like the rest of the project's config rather than a wall of
// "KEY = VALUE" lines, and parsed into doxyfileConfig before rendering.
const doxyfileDefaults = `
projectName: levelup
inputDir: "."
outputDir: doxygen_output
generateXML: true
xmlOutputDir: xml_unexpanded
macroExpansion: false
extractAll: true
extractPrivate: true
extractStatic: true
recursive: true
quiet: true
`

type doxyfileConfig struct {
	ProjectName    string `yaml:"projectName"`
	InputDir       string `yaml:"inputDir"`
	OutputDir      string `yaml:"outputDir"`
	GenerateXML    bool   `yaml:"generateXML"`
	XMLOutputDir   string `yaml:"xmlOutputDir"`
	MacroExpansion bool   `yaml:"macroExpansion"`
	ExtractAll     bool   `yaml:"extractAll"`
	ExtractPrivate bool   `yaml:"extractPrivate"`
	ExtractStatic  bool   `yaml:"extractStatic"`
	Recursive      bool   `yaml:"recursive"`
	Quiet          bool   `yaml:"quiet"`
}

func yesno(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

var doxyfileTemplate = template.Must(template.New("doxyfile").Funcs(template.FuncMap{
	"yesno": yesno,
}).Parse(`PROJECT_NAME           = "{{.ProjectName}}"
INPUT                   = {{.InputDir}}
OUTPUT_DIRECTORY        = {{.OutputDir}}
GENERATE_XML            = {{yesno .GenerateXML}}
XML_OUTPUT              = {{.XMLOutputDir}}
ENABLE_PREPROCESSING    = YES
MACRO_EXPANSION         = {{yesno .MacroExpansion}}
EXPAND_ONLY_PREDEF      = YES
EXTRACT_ALL             = {{yesno .ExtractAll}}
EXTRACT_PRIVATE         = {{yesno .ExtractPrivate}}
EXTRACT_STATIC          = {{yesno .ExtractStatic}}
RECURSIVE               = {{yesno .Recursive}}
GENERATE_HTML           = NO
GENERATE_LATEX          = NO
QUIET                   = {{yesno .Quiet}}
WARN_IF_UNDOCUMENTED    = NO
`))

// DoxygenExtractor runs Doxygen as a subprocess to produce macro-unexpanded
// XML, then parses the result into Symbols.
type DoxygenExtractor struct {
	// BinPath is the doxygen executable to invoke.
	BinPath string
	// Timeout bounds a single extraction pass; Doxygen over a large C++
	// repo can legitimately take tens of minutes.
	Timeout time.Duration
}

func (e *DoxygenExtractor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return 30 * time.Minute
}

// Extract renders a Doxyfile, runs doxygen over repoPath, and parses every
// generated XML file into Symbols. The output directory
// {repoPath}/doxygen_output/xml_unexpanded is (re)generated on every call;
// the caller (Index) decides when that's actually necessary.
func (e *DoxygenExtractor) Extract(ctx context.Context, repoPath string) ([]Symbol, error) {
	var cfg doxyfileConfig
	if err := yaml.Unmarshal([]byte(doxyfileDefaults), &cfg); err != nil {
		return nil, fmt.Errorf("symbols: parsing doxyfile defaults: %w", err)
	}
	cfg.ProjectName = filepath.Base(repoPath)
	cfg.OutputDir = constants.DoxygenOutputDir
	cfg.XMLOutputDir = constants.DoxygenXMLSubdir

	doxyfilePath := filepath.Join(repoPath, "Doxyfile.levelup")
	f, err := os.Create(doxyfilePath)
	if err != nil {
		return nil, fmt.Errorf("symbols: writing Doxyfile: %w", err)
	}
	if err := doxyfileTemplate.Execute(f, cfg); err != nil {
		f.Close()
		return nil, fmt.Errorf("symbols: rendering Doxyfile: %w", err)
	}
	f.Close()
	defer os.Remove(doxyfilePath)

	binPath := e.BinPath
	if binPath == "" {
		binPath = "doxygen"
	}

	result, err := procrunner.Run(ctx, procrunner.Spec{
		Argv:    []string{binPath, "Doxyfile.levelup"},
		Dir:     repoPath,
		Timeout: e.timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", errorkinds.NewSpawnError([]string{binPath}, err))
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("symbols: %w", errorkinds.NewExitError([]string{binPath}, result.ExitCode, result.Stderr))
	}

	xmlDir := constants.DoxygenXMLPath(repoPath)
	entries, err := os.ReadDir(xmlDir)
	if err != nil {
		return nil, fmt.Errorf("symbols: reading xml output dir: %w", err)
	}

	var syms []Symbol
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".xml" {
			continue
		}
		if entry.Name() == "index.xml" {
			continue
		}
		parsed, err := parseCompoundXML(filepath.Join(xmlDir, entry.Name()), repoPath)
		if err != nil {
			return nil, fmt.Errorf("symbols: parsing %s: %w", entry.Name(), err)
		}
		syms = append(syms, parsed...)
	}
	return syms, nil
}

// Doxygen's compound XML schema, reduced to the fields the index needs.
type doxygenFile struct {
	XMLName     xml.Name      `xml:"doxygen"`
	CompoundDef []compoundDef `xml:"compounddef"`
}

type compoundDef struct {
	Kind         string        `xml:"kind,attr"`
	CompoundName string        `xml:"compoundname"`
	SectionDef   []sectionDef  `xml:"sectiondef"`
	Location     *location     `xml:"location"`
}

type sectionDef struct {
	MemberDef []memberDef `xml:"memberdef"`
}

type memberDef struct {
	Kind       string    `xml:"kind,attr"`
	Name       string    `xml:"name"`
	Definition string    `xml:"definition"`
	ArgsString string    `xml:"argsstring"`
	Location   *location `xml:"location"`
}

type location struct {
	File      string `xml:"file,attr"`
	Line      int    `xml:"line,attr"`
	BodyStart int    `xml:"bodystart,attr"`
	BodyEnd   int    `xml:"bodyend,attr"`
}

var doxygenKindToSymbolKind = map[string]Kind{
	"function":  KindFunction,
	"class":     KindClass,
	"struct":    KindStruct,
	"enum":      KindEnum,
	"typedef":   KindTypedef,
	"variable":  KindVariable,
	"namespace": KindNamespace,
}

func parseCompoundXML(path, repoPath string) ([]Symbol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc doxygenFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var syms []Symbol
	for _, cd := range doc.CompoundDef {
		isMember := cd.Kind == "class" || cd.Kind == "struct"

		if kind, ok := doxygenKindToSymbolKind[cd.Kind]; ok && cd.Location != nil {
			syms = append(syms, Symbol{
				Kind:          kind,
				Name:          localName(cd.CompoundName),
				QualifiedName: cd.CompoundName,
				File:          relFile(repoPath, cd.Location.File),
				StartLine:     cd.Location.Line,
				EndLine:       endLine(cd.Location),
				Prototype:     cd.CompoundName,
			})
		}

		for _, sec := range cd.SectionDef {
			for _, md := range sec.MemberDef {
				kind, ok := doxygenKindToSymbolKind[md.Kind]
				if !ok || md.Location == nil {
					continue
				}
				qualified := md.Name
				if cd.CompoundName != "" && cd.Kind != "file" {
					qualified = cd.CompoundName + "::" + md.Name
				}
				prototype := md.Definition + md.ArgsString
				syms = append(syms, Symbol{
					Kind:          kind,
					Name:          md.Name,
					QualifiedName: qualified,
					File:          relFile(repoPath, md.Location.File),
					StartLine:     md.Location.Line,
					EndLine:       endLine(md.Location),
					Prototype:     prototype,
					IsMember:      isMember,
					Qualifiers:    parseQualifiers(prototype),
				})
			}
		}
	}
	return syms, nil
}

func endLine(loc *location) int {
	if loc.BodyEnd > 0 {
		return loc.BodyEnd
	}
	return loc.Line
}

func localName(qualified string) string {
	idx := -1
	for i := len(qualified) - 1; i > 0; i-- {
		if qualified[i] == ':' && qualified[i-1] == ':' {
			idx = i + 1
			break
		}
	}
	if idx == -1 {
		return qualified
	}
	return qualified[idx:]
}
