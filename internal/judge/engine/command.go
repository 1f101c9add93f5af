package engine

import (
	"strings"

	"github.com/google/shlex"

	appErr "cryptoj/pkg/errors"
)

// isScripted reports whether a command template marks an interpreted
// language: the template is a shebang line prepended to the code instead of
// a compile command.
func isScripted(template string) bool {
	return strings.HasPrefix(template, "#!")
}

// compileArgs tokenizes a compile command template and substitutes the
// per-submission file names for the ${input} and ${output} placeholders.
func compileArgs(template, codeFile, execFile string) ([]string, error) {
	tokens, err := shlex.Split(template)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse compile command failed")
	}
	if len(tokens) == 0 {
		return nil, appErr.Newf(appErr.InvalidParams, "compile command is empty")
	}
	for i, token := range tokens {
		switch token {
		case "${input}":
			tokens[i] = codeFile
		case "${output}":
			tokens[i] = execFile
		}
	}
	return tokens, nil
}
