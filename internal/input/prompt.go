package input

import (
	"bufio"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"StockChart/internal/model"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Prompter asks for a symbol and date range on a line-oriented console. Any
// invalid answer restarts the sequence from the symbol.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Query reads the three fields in order until all of them validate. It fails
// only when input ends.
func (p *Prompter) Query() (model.Query, error) {
	for {
		q, msg, err := p.attempt()
		if err != nil {
			return model.Query{}, err
		}
		if msg == "" {
			return q, nil
		}
		fmt.Fprintln(p.out, errorStyle.Render(msg))
	}
}

// attempt runs one pass over the prompts. A non-empty msg names the first
// field that failed.
func (p *Prompter) attempt() (q model.Query, msg string, err error) {
	symbol, err := p.ask("Enter the stock symbol (3 alphabetic characters): ")
	if err != nil {
		return q, "", err
	}
	symbol = NormalizeSymbol(symbol)
	if !ValidateSymbol(symbol) {
		return q, "Invalid stock symbol. It must be exactly 3 characters.", nil
	}

	raw, err := p.ask("Enter the start date (dd/mm/yyyy): ")
	if err != nil {
		return q, "", err
	}
	from, perr := ParseDate(raw)
	if perr != nil {
		return q, "Invalid start date format. It must be in the format dd/mm/yyyy.", nil
	}

	raw, err = p.ask("Enter the end date (dd/mm/yyyy): ")
	if err != nil {
		return q, "", err
	}
	to, perr := ParseDate(raw)
	if perr != nil {
		return q, "Invalid end date format. It must be in the format dd/mm/yyyy.", nil
	}
	if to.Before(from) {
		return q, "Invalid end date. It must not be before " + from.Format(model.DateLayout) + ".", nil
	}

	q, err = BuildQuery(symbol, from, to)
	return q, "", err
}

// ask prints label and reads one line.
func (p *Prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, promptStyle.Render(label))
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", io.ErrUnexpectedEOF
	}
	return p.in.Text(), nil
}
