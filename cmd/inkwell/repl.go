package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/editor"
	"github.com/aretw0/inkwell/pkg/flush"
	"github.com/aretw0/inkwell/pkg/network"
	"github.com/aretw0/inkwell/pkg/reconcile"
)

const replHelp = `Plain lines are appended to the body. Commands:
  :title <text>     set the title
  :tags a,b,c       set the tags
  :fav on|off       mark or unmark as favourite
  :clear            empty the body
  :show             print the note
  :status           print the save status
  :save             save now
  :hide | :visible  simulate the window being hidden or shown
  :blur | :focus    simulate the editor losing or gaining focus
  :offline|:online  toggle simulated connectivity
  :restore          adopt the recovered draft
  :discard          drop the recovered draft
  :reload          fetch the note again after a failed load
  :archive          archive the note and quit
  :delete           delete the note and quit
  :quit             flush and quit
`

// quitTimeout bounds how long :quit waits for the last save.
const quitTimeout = 5 * time.Second

var errQuit = errors.New("quit")

// session is one interactive editing session.
type session struct {
	ed  *editor.Controller
	net *network.Monitor
	out io.Writer

	// id is the note requested on the command line, empty for a new note.
	id string
}

// open positions the editor on the requested note.
func (s *session) open(ctx context.Context) error {
	if s.id == "" {
		s.announce(s.ed.OpenNew(ctx))
		return nil
	}
	res, err := s.ed.Load(ctx, s.id)
	if err != nil {
		fmt.Fprintf(s.out, "could not load %s (%v); edits are buffered, retry with :reload\n", s.id, err)
		return err
	}
	s.announce(res)
	return nil
}

// exec runs one input line. It returns errQuit when the session should end.
func (s *session) exec(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, ":") {
		f := s.ed.Fields()
		s.ed.SetBody(f.Body + line + "\n")
		return nil
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "help", "h":
		fmt.Fprint(s.out, replHelp)
	case "title":
		s.ed.SetTitle(arg)
	case "tags":
		var tags []string
		for _, t := range strings.Split(arg, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		s.ed.SetTags(tags)
	case "fav":
		s.ed.SetFavorited(arg == "on" || arg == "true" || arg == "")
	case "clear":
		s.ed.SetBody("")
	case "show":
		s.print()
	case "status":
		s.status()
	case "save":
		return s.ed.SaveNow()
	case "hide":
		s.ed.HandleEvent(flush.EventHidden)
	case "visible":
		s.ed.HandleEvent(flush.EventVisible)
	case "blur":
		s.ed.HandleEvent(flush.EventBlur)
	case "focus":
		s.ed.HandleEvent(flush.EventFocus)
	case "offline", "online":
		if s.net == nil {
			return errors.New("connectivity is not simulated in this session")
		}
		s.net.Set(cmd == "online")
	case "reload":
		if s.id == "" {
			return errors.New("a new note has nothing to reload")
		}
		_ = s.open(ctx)
	case "restore":
		return s.ed.Resolve(ctx, reconcile.ChoiceRestore)
	case "discard":
		return s.ed.Resolve(ctx, reconcile.ChoiceDiscard)
	case "archive":
		if err := s.ed.Archive(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "archived")
		return errQuit
	case "delete":
		if err := s.ed.Delete(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "deleted")
		return errQuit
	case "quit", "q":
		s.leave(ctx)
		return errQuit
	default:
		return fmt.Errorf("unknown command :%s (try :help)", cmd)
	}
	return nil
}

// leave flushes pending edits and waits briefly for the request to finish.
func (s *session) leave(ctx context.Context) {
	s.ed.HandleEvent(flush.EventUnload)

	ctx, cancel := context.WithTimeout(ctx, quitTimeout)
	defer cancel()
	if err := s.ed.WaitIdle(ctx); err != nil {
		fmt.Fprintln(s.out, "save still in flight; the draft is kept locally")
	}
}

func (s *session) print() {
	f := s.ed.Fields()
	fmt.Fprintf(s.out, "# %s\n", f.Title)
	if len(f.Tags) > 0 {
		fmt.Fprintf(s.out, "tags: %s\n", strings.Join(f.Tags, ", "))
	}
	if f.Favorited {
		fmt.Fprintln(s.out, "★")
	}
	fmt.Fprint(s.out, f.Body)
}

func (s *session) status() {
	id := "(new)"
	if n := s.ed.Note(); n != nil && n.ID != "" {
		id = n.ID
	}
	st := s.ed.Status()
	fmt.Fprintf(s.out, "note %s: %s", id, st)
	if s.ed.HasUnsavedChanges() {
		fmt.Fprint(s.out, ", unsaved changes")
	}
	if _, ok := s.ed.Conflict(); ok {
		fmt.Fprint(s.out, ", draft awaiting :restore or :discard")
	}
	if st == core.StatusError {
		if err := s.ed.LastError(); err != nil {
			fmt.Fprintf(s.out, " (%v)", err)
		}
	}
	fmt.Fprintln(s.out)
}

// announce reports a reconciliation result that needs the user.
func (s *session) announce(res reconcile.Result) {
	if !res.NeedsDecision() {
		return
	}
	fmt.Fprintf(s.out, "Recovered a local draft saved %s that differs from the server.\n",
		res.Draft.SavedAt.Local().Format(time.DateTime))
	fmt.Fprintln(s.out, "Use :restore to keep it or :discard to drop it.")
}
