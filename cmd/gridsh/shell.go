package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"

	"github.com/tuannm99/novagrid/gridstore"
)

var errQuit = errors.New("quit")

const shellHelp = `meta commands:
  .containers            list containers by partition
  .partitions            partition sizes
  .use NAME              select the container statements run against
  .schema [NAME]         describe a container
  .create JSON           create a container, e.g.
                         .create {"name":"t","rowKey":true,"columnInfoList":[["id","LONG"],["v","STRING"]]}
  .drop NAME             drop a container
  .put JSON_ARRAY        write a row into the current container
  .get KEY | .remove KEY row by key (JSON, or a bare string)
  .begin | .commit | .abort
                         manual transactions on the current container
  .history               print history
  .quit | .exit          leave

queries:
  TQL against the current container, ended with ';'
  e.g. SELECT * WHERE age > 30 ORDER BY age DESC LIMIT 10;`

// shell executes one input line at a time. It holds the selected
// container between lines.
type shell struct {
	st   *gridstore.Store
	out  io.Writer
	log  zerolog.Logger
	hist *History

	current *gridstore.Container
}

func newShell(st *gridstore.Store, out io.Writer, hist *History) *shell {
	return &shell{st: st, out: out, log: st.Session().Logger(), hist: hist}
}

func (sh *shell) close() {
	if sh.current != nil {
		_ = sh.current.Close()
		sh.current = nil
	}
}

// exec runs a meta command or a complete TQL statement. It returns
// errQuit when the user asked to leave.
func (sh *shell) exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, ".") {
		return sh.query(strings.TrimSuffix(line, ";"))
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case ".quit", ".exit":
		return errQuit
	case ".help":
		_, _ = fmt.Fprintln(sh.out, shellHelp)
	case ".history":
		sh.hist.Print(sh.out, 50)
	case ".containers":
		return sh.containers()
	case ".partitions":
		return sh.partitions()
	case ".use":
		return sh.use(arg)
	case ".schema":
		return sh.schema(arg)
	case ".create":
		return sh.create(arg)
	case ".drop":
		return sh.drop(arg)
	case ".put":
		return sh.put(arg)
	case ".get":
		return sh.get(arg)
	case ".remove":
		return sh.remove(arg)
	case ".begin":
		return sh.withCurrent(func(c *gridstore.Container) error { return c.SetAutoCommit(false) })
	case ".commit":
		return sh.withCurrent(func(c *gridstore.Container) error {
			if err := c.Commit(); err != nil {
				return err
			}
			return c.SetAutoCommit(true)
		})
	case ".abort":
		return sh.withCurrent(func(c *gridstore.Container) error {
			if err := c.Abort(); err != nil {
				return err
			}
			return c.SetAutoCommit(true)
		})
	default:
		return fmt.Errorf("unknown command %s, try .help", cmd)
	}
	return nil
}

func (sh *shell) withCurrent(fn func(c *gridstore.Container) error) error {
	if sh.current == nil {
		return errors.New("no container selected, use .use NAME")
	}
	return fn(sh.current)
}

func (sh *shell) query(stmt string) error {
	return sh.withCurrent(func(c *gridstore.Container) error {
		return runQuery(sh.out, c, stmt)
	})
}

// runQuery fetches stmt on c and renders whatever row set it yields.
func runQuery(w io.Writer, c *gridstore.Container, stmt string) error {
	q, err := c.Query(stmt)
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	rs, err := q.Fetch()
	if err != nil {
		return err
	}
	return renderRowSet(w, rs, c.Info().Columns())
}

func (sh *shell) containers() error {
	names, err := listContainers(sh.st)
	if err != nil {
		return err
	}
	for _, n := range names {
		_, _ = fmt.Fprintln(sh.out, n)
	}
	return nil
}

// listContainers walks every partition.
func listContainers(st *gridstore.Store) ([]string, error) {
	pc, err := st.PartitionController()
	if err != nil {
		return nil, err
	}
	defer func() { _ = pc.Close() }()

	n, err := pc.PartitionCount()
	if err != nil {
		return nil, err
	}
	var names []string
	for p := range n {
		list, err := pc.ContainerNames(p, 0, -1)
		if err != nil {
			return nil, err
		}
		names = append(names, list...)
	}
	return names, nil
}

func (sh *shell) partitions() error {
	pc, err := sh.st.PartitionController()
	if err != nil {
		return err
	}
	defer func() { _ = pc.Close() }()

	n, err := pc.PartitionCount()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(sh.out, "%d partitions\n", n)
	for p := range n {
		count, err := pc.ContainerCount(p)
		if err != nil {
			return err
		}
		if count > 0 {
			_, _ = fmt.Fprintf(sh.out, "%5d  %d containers\n", p, count)
		}
	}
	return nil
}

func (sh *shell) use(name string) error {
	if name == "" {
		return errors.New("usage: .use NAME")
	}
	c, err := sh.st.GetContainer(name)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("container %q does not exist", name)
	}
	sh.close()
	sh.current = c
	sh.log.Debug().Str("container", name).Msg("container selected")
	return nil
}

func (sh *shell) schema(name string) error {
	if name == "" {
		if sh.current == nil {
			return errors.New("usage: .schema NAME")
		}
		name = sh.current.Name()
	}
	info, err := sh.st.GetContainerInfo(name)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("container %q does not exist", name)
	}
	renderSchema(sh.out, info)
	return nil
}

func (sh *shell) create(raw string) error {
	var desc map[string]any
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		return fmt.Errorf("usage: .create JSON: %w", err)
	}
	info, err := gridstore.ParseContainerInfo(desc)
	if err != nil {
		return err
	}
	c, err := sh.st.PutContainer(info, false)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(sh.out, "created %s\n", c.Name())
	sh.close()
	sh.current = c
	return nil
}

func (sh *shell) drop(name string) error {
	if name == "" {
		return errors.New("usage: .drop NAME")
	}
	if sh.current != nil && strings.EqualFold(sh.current.Name(), name) {
		sh.close()
	}
	return sh.st.DropContainer(name)
}

func (sh *shell) put(raw string) error {
	var fields []any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fmt.Errorf("usage: .put JSON_ARRAY: %w", err)
	}
	return sh.withCurrent(func(c *gridstore.Container) error { return c.Put(fields) })
}

func parseKey(raw string) (any, error) {
	if raw == "" {
		return nil, errors.New("a key is required")
	}
	var key any
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return raw, nil
	}
	return key, nil
}

func (sh *shell) get(raw string) error {
	key, err := parseKey(raw)
	if err != nil {
		return err
	}
	return sh.withCurrent(func(c *gridstore.Container) error {
		row, found, err := c.Get(key)
		if err != nil {
			return err
		}
		if !found {
			_, _ = fmt.Fprintln(sh.out, "(0 rows)")
			return nil
		}
		header := make(table.Row, 0, len(row))
		for _, col := range c.Info().Columns() {
			header = append(header, col.Name)
		}
		cells := make(table.Row, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		renderTable(sh.out, header, []table.Row{cells})
		return nil
	})
}

func (sh *shell) remove(raw string) error {
	key, err := parseKey(raw)
	if err != nil {
		return err
	}
	return sh.withCurrent(func(c *gridstore.Container) error { return c.Remove(key) })
}

// run is the interactive loop. Statements may span lines until ';'.
func (sh *shell) run(prompt string, histMax int) error {
	_ = sh.hist.Load(histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          sh.out,
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range sh.hist.Lines() {
		_ = rl.SaveHistory(line)
	}

	_, _ = fmt.Fprintln(sh.out, "type .help for help")

	var buf strings.Builder
	cont := strings.Repeat(" ", max(len(prompt)-3, 0)) + "-> "
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(prompt)
			continue
		}
		if err != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			_ = sh.hist.Append(line)
			if err := sh.exec(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				_, _ = fmt.Fprintf(sh.out, "error: %v\n", err)
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)
		if !statementComplete(buf.String()) {
			rl.SetPrompt(cont)
			continue
		}

		stmt := buf.String()
		buf.Reset()
		rl.SetPrompt(prompt)
		_ = sh.hist.Append(stmt)
		if err := sh.exec(stmt); err != nil {
			_, _ = fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}
