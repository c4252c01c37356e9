package generate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cognito-lm/cognito/internal/tensor"
)

// QuitCommand ends the interactive loop.
const QuitCommand = "quit"

// RunREPL reads prompts from in, one per line, and streams each
// continuation to out until it reads QuitCommand or in is exhausted.
func RunREPL[B tensor.Backend](ctx context.Context, in io.Reader, out io.Writer, s *Session[B], cfg Config) error {
	sc := bufio.NewScanner(in)
	for {
		if _, err := fmt.Fprint(out, "\n> "); err != nil {
			return err
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read prompt: %w", err)
			}
			return nil
		}

		prompt := strings.TrimSpace(sc.Text())
		switch prompt {
		case "":
			continue
		case QuitCommand:
			return nil
		}

		if _, err := fmt.Fprint(out, prompt); err != nil {
			return err
		}
		res, err := s.Generate(ctx, prompt, cfg, out)
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		if _, err := fmt.Fprintf(out, "\n[%d tokens, %s]\n", len(res.TokenIDs), res.Reason); err != nil {
			return err
		}
	}
}
