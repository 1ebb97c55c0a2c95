// Package console is the line-oriented scan console. An operator picks a
// mode, scans tools into that mode's cart and commits the batch.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/cart"
	"github.com/erazemk/orodjarna/internal/metrics"
	"github.com/erazemk/orodjarna/internal/model"
)

const prompt = "> "

const help = `commands:
  export <name>      scan tools out to <name>
  return [name]      scan tools back in, optionally on behalf of <name>
  <token>            add a tool by short code, barcode, serial or name
  rm <token>         remove a tool from the cart
  list               show the cart
  commit [purpose]   apply the cart
  clear              empty the cart
  quit               leave`

// Resolver maps a scanned token to a tool. *scan.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*model.Tool, error)
}

// Console is one operator session. It is not safe for concurrent use.
type Console struct {
	resolver       Resolver
	lifecycle      cart.Committer
	logger         *slog.Logger
	metrics        *metrics.Metrics
	defaultPurpose string

	mode   cart.Mode
	person string
	carts  map[cart.Mode]*cart.Cart
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger used for commit results.
func WithLogger(l *slog.Logger) Option {
	return func(c *Console) { c.logger = l }
}

// WithMetrics passes m on to the carts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Console) { c.metrics = m }
}

// WithDefaultPurpose sets the purpose used when commit is given none.
func WithDefaultPurpose(p string) Option {
	return func(c *Console) { c.defaultPurpose = p }
}

// New returns a console with no mode selected.
func New(res Resolver, lc cart.Committer, opts ...Option) *Console {
	c := &Console{
		resolver:       res,
		lifecycle:      lc,
		logger:         slog.Default(),
		defaultPurpose: cart.DefaultPurpose,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.carts = map[cart.Mode]*cart.Cart{
		cart.ModeExport: cart.New(cart.ModeExport, cart.WithMetrics(c.metrics)),
		cart.ModeReturn: cart.New(cart.ModeReturn, cart.WithMetrics(c.metrics)),
	}
	return c
}

// Run reads commands from in until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "orodjarna scan console, type help for commands")
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if quit := c.Handle(ctx, sc.Text(), out); quit {
			return nil
		}
	}
}

// Handle processes one input line and reports whether the session should end.
func (c *Console) Handle(ctx context.Context, line string, out io.Writer) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "quit", "exit":
		if n := c.pending(); n > 0 {
			fmt.Fprintf(out, "leaving with %d uncommitted tools\n", n)
		}
		return true
	case "help":
		fmt.Fprintln(out, help)
	case "export":
		if arg == "" {
			fmt.Fprintln(out, "usage: export <name>")
			return false
		}
		c.mode, c.person = cart.ModeExport, arg
		fmt.Fprintf(out, "export mode for %s (%d in cart)\n", arg, c.carts[c.mode].Len())
	case "return":
		c.mode, c.person = cart.ModeReturn, arg
		fmt.Fprintf(out, "return mode (%d in cart)\n", c.carts[c.mode].Len())
	case "rm":
		c.remove(ctx, arg, out)
	case "list":
		c.list(out)
	case "commit":
		c.commit(ctx, arg, out)
	case "clear":
		if cur := c.current(out); cur != nil {
			cur.Clear()
			fmt.Fprintln(out, "cart cleared")
		}
	default:
		c.add(ctx, line, out)
	}
	return false
}

func (c *Console) current(out io.Writer) *cart.Cart {
	if c.mode == "" {
		fmt.Fprintln(out, "pick a mode first: export <name> or return")
		return nil
	}
	return c.carts[c.mode]
}

func (c *Console) pending() int {
	n := 0
	for _, ct := range c.carts {
		n += ct.Len()
	}
	return n
}

func (c *Console) add(ctx context.Context, token string, out io.Writer) {
	cur := c.current(out)
	if cur == nil {
		return
	}
	t, err := c.resolver.Resolve(ctx, token)
	if err != nil {
		fmt.Fprintf(out, "! %s\n", describe(err))
		return
	}
	if err := cur.Add(t); err != nil {
		if errors.Is(err, apperr.ErrDuplicateInCart) {
			fmt.Fprintf(out, "already in cart: %s\n", label(t))
			return
		}
		fmt.Fprintf(out, "! %s\n", describe(err))
		return
	}
	fmt.Fprintf(out, "+ %s (%d in cart)\n", label(t), cur.Len())
}

func (c *Console) remove(ctx context.Context, token string, out io.Writer) {
	cur := c.current(out)
	if cur == nil {
		return
	}
	if token == "" {
		fmt.Fprintln(out, "usage: rm <token>")
		return
	}
	t, err := c.resolver.Resolve(ctx, token)
	if err != nil {
		fmt.Fprintf(out, "! %s\n", describe(err))
		return
	}
	if !cur.Remove(t.ID) {
		fmt.Fprintf(out, "not in cart: %s\n", label(t))
		return
	}
	fmt.Fprintf(out, "- %s (%d in cart)\n", label(t), cur.Len())
}

func (c *Console) list(out io.Writer) {
	cur := c.current(out)
	if cur == nil {
		return
	}
	entries := cur.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(out, "cart is empty")
		return
	}
	for i, e := range entries {
		fmt.Fprintf(out, "%2d. %s  %s\n", i+1, label(&e.Tool), e.Tool.Category)
	}
}

func (c *Console) commit(ctx context.Context, purpose string, out io.Writer) {
	cur := c.current(out)
	if cur == nil {
		return
	}
	if cur.Len() == 0 {
		fmt.Fprintln(out, "cart is empty, nothing to commit")
		return
	}

	opts := cart.CommitOptions{Purpose: purpose}
	if c.mode == cart.ModeExport {
		opts.Exporter = c.person
		if opts.Purpose == "" {
			opts.Purpose = c.defaultPurpose
		}
	} else {
		opts.ReturnedBy = c.person
	}

	res, err := cur.Commit(ctx, c.lifecycle, opts)
	for _, t := range res.Succeeded {
		fmt.Fprintf(out, "ok %s: %s\n", label(&t), t.Status)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(out, "failed %s: %s\n", label(&f.Tool), describe(f.Err))
	}
	if err != nil {
		fmt.Fprintf(out, "! %s\n", describe(err))
	}
	fmt.Fprintf(out, "%d committed, %d left in cart\n", len(res.Succeeded), cur.Len())

	c.logger.Info("cart committed", "mode", c.mode, "person", c.person,
		"succeeded", len(res.Succeeded), "failed", len(res.Failed))
}

func label(t *model.Tool) string {
	return fmt.Sprintf("%s %s [%s]", model.ShortCode(t.ID), t.Name, t.Barcode)
}

// describe returns the operator-facing reason of err.
func describe(err error) string {
	if e := apperr.As(err); e != nil && e.Code() == apperr.CodeStoreUnavailable {
		return "store unavailable, try again"
	}
	return err.Error()
}
