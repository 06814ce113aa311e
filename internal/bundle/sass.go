package bundle

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
)

// sassCompiler starts the embedded Dart Sass process on first use.
type sassCompiler struct {
	binary string

	once       sync.Once
	transpiler *godartsass.Transpiler
	err        error
}

func (s *sassCompiler) start() {
	s.transpiler, s.err = godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: s.binary,
	})
	if s.err != nil {
		s.err = fmt.Errorf("starting dart sass: %w", s.err)
	}
}

func (s *sassCompiler) compile(path, source string, includePaths []string) (string, error) {
	s.once.Do(s.start)
	if s.err != nil {
		return "", s.err
	}

	syntax := godartsass.SourceSyntaxSCSS
	if filepath.Ext(path) == ".sass" {
		syntax = godartsass.SourceSyntaxSASS
	}

	result, err := s.transpiler.Execute(godartsass.Args{
		Source:       source,
		URL:          "file://" + filepath.ToSlash(path),
		SourceSyntax: syntax,
		OutputStyle:  godartsass.OutputStyleExpanded,
		IncludePaths: includePaths,
	})
	if err != nil {
		return "", fmt.Errorf("sass %s: %w", path, err)
	}
	return result.CSS, nil
}

func (s *sassCompiler) close() error {
	if s.transpiler == nil {
		return nil
	}
	return s.transpiler.Close()
}
