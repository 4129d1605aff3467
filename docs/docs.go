//go:build docs

// Command docs renders the privtrace CLI reference: one markdown page per
// command under docs/, man pages under docs/man and README.md from
// README.md.tpl.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/maxgio92/privtrace/internal/settings"
	"github.com/maxgio92/privtrace/pkg/cmd"
)

const (
	docsDir         = "docs"
	manDir          = "docs/man"
	readmeTemplate  = "README.md.tpl"
	readmeFile      = "README.md"
	referenceMarker = "{{ .CLI_REFERENCE }}"
	frontMatter     = "---\ntitle: %q\n---\n\n"
)

func main() {
	logger := log.New(log.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	root := cmd.NewCommand(cmd.NewOptions(cmd.WithLogger(logger.Level(log.WarnLevel))))
	root.DisableAutoGenTag = true

	if err := generate(root); err != nil {
		logger.Fatal().Err(err).Msg("failed to generate the CLI reference")
	}
	logger.Info().Str("dir", docsDir).Msg("CLI reference generated")
}

func generate(root *cobra.Command) error {
	if err := os.MkdirAll(manDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create man page directory")
	}
	if err := doc.GenMarkdownTreeCustom(root, docsDir, frontMatterFor, linkFor); err != nil {
		return errors.Wrap(err, "failed to generate markdown pages")
	}
	header := &doc.GenManHeader{
		Title:   strings.ToUpper(settings.CmdName),
		Section: "1",
		Source:  settings.CmdName,
	}
	if err := doc.GenManTree(root, header, manDir); err != nil {
		return errors.Wrap(err, "failed to generate man pages")
	}

	return renderReadme(root)
}

// frontMatterFor titles a page after its command path, e.g.
// docs/privtrace_replay.md becomes "privtrace replay".
func frontMatterFor(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), ".md")
	return fmt.Sprintf(frontMatter, strings.ReplaceAll(name, "_", " "))
}

func linkFor(filename string) string {
	if filename == settings.CmdName+".md" {
		return readmeFile
	}
	return path.Join(docsDir, filename)
}

// renderReadme splices the root command reference into the README template.
func renderReadme(root *cobra.Command) error {
	tpl, err := os.ReadFile(readmeTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to read README template")
	}
	if !bytes.Contains(tpl, []byte(referenceMarker)) {
		return errors.Errorf("%s has no %s marker", readmeTemplate, referenceMarker)
	}

	var ref bytes.Buffer
	if err := doc.GenMarkdownCustom(root, &ref, linkFor); err != nil {
		return errors.Wrap(err, "failed to render the root command reference")
	}
	readme := bytes.Replace(tpl, []byte(referenceMarker), ref.Bytes(), 1)

	return errors.Wrap(os.WriteFile(readmeFile, readme, 0o644), "failed to write README")
}
