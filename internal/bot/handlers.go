package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deployrota/internal/roster"
	"deployrota/internal/schedule"
	kit "deployrota/internal/transport"
	logx "deployrota/pkg/logx"
)

func (b *Bot) commands(timeout time.Duration) []Command {
	return []Command{
		{Name: "schedule", Aliases: []string{"s"}, Description: "upcoming deploys", Usage: "/schedule [n] [--from-start]", Timeout: timeout, Handle: b.cmdSchedule},
		{Name: "stored", Description: "schedule saved in the remote table", Usage: "/stored", Timeout: timeout, Handle: b.cmdStored},
		{Name: "today", Description: "who deploys today", Usage: "/today", Timeout: timeout, Handle: b.cmdToday},
		{Name: "roster", Aliases: []string{"names"}, Description: "show the rotation", Usage: "/roster", Timeout: timeout, Handle: b.cmdRoster},
		{Name: "add", Description: "add a name to the draft", Usage: "/add <name>", OwnerOnly: true, Timeout: timeout, Handle: b.cmdAdd},
		{Name: "remove", Aliases: []string{"rm"}, Description: "remove a name from the draft", Usage: "/remove <position>", OwnerOnly: true, Timeout: timeout, Handle: b.cmdRemove},
		{Name: "edit", Description: "rename an entry in the draft", Usage: "/edit <position> <name>", OwnerOnly: true, Timeout: timeout, Handle: b.cmdEdit},
		{Name: "move", Description: "reorder the draft", Usage: "/move <from> <to>", OwnerOnly: true, Timeout: timeout, Handle: b.cmdMove},
		{Name: "save", Description: "save the draft", Usage: "/save", OwnerOnly: true, Timeout: timeout, Handle: b.cmdSave},
		{Name: "cancel", Description: "discard the draft", Usage: "/cancel", OwnerOnly: true, Timeout: timeout, Handle: b.cmdCancel},
		{Name: "help", Aliases: []string{"start"}, Description: "list commands", Usage: "/help [command]", Timeout: timeout, Handle: b.cmdHelp},
	}
}

func (b *Bot) send(ctx context.Context, req *Request, text string) error {
	_, err := b.router.sender.SendText(ctx, req.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

func (b *Bot) cmdSchedule(ctx context.Context, req *Request) error {
	count := int(b.listCount.Load())
	if len(req.Args) > 0 {
		n, err := strconv.Atoi(req.Args[0])
		if err != nil || n < 1 || n > maxListCount {
			return b.send(ctx, req, fmt.Sprintf("count must be a number between 1 and %d", maxListCount))
		}
		count = n
	}

	var (
		entries []schedule.Entry
		err     error
		title   = "Upcoming deploys"
	)
	if req.Bools["from-start"] {
		entries, err = b.svc.Schedule(ctx, count)
		title = "Deploy schedule"
	} else {
		entries, err = b.svc.Upcoming(ctx, count)
	}
	if errors.Is(err, schedule.ErrEmptyRoster) {
		return b.send(ctx, req, "The roster is empty. Add names with /add and /save.")
	}
	if err != nil {
		return err
	}
	return b.send(ctx, req, title+"\n"+b.renderEntries(entries))
}

func (b *Bot) cmdStored(ctx context.Context, req *Request) error {
	rows := b.svc.Stored(ctx)
	if len(rows) == 0 {
		return b.send(ctx, req, "No stored schedule.")
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, "Stored schedule")
	for _, r := range rows {
		lines = append(lines, r.DeployDate+" - "+r.Responsible)
	}
	return b.send(ctx, req, strings.Join(lines, "\n"))
}

func (b *Bot) cmdToday(ctx context.Context, req *Request) error {
	e, ok, err := b.svc.TodayEntry(ctx)
	if errors.Is(err, schedule.ErrEmptyRoster) {
		return b.send(ctx, req, "The roster is empty.")
	}
	if err != nil {
		return err
	}
	if ok {
		return b.send(ctx, req, fmt.Sprintf("Deploy today (%s): %s", b.svc.FormatDate(e.Date), e.Responsible))
	}
	next, err := b.svc.Next(ctx)
	if err != nil {
		return err
	}
	return b.send(ctx, req, "No deploy today. Next: "+b.renderEntry(next))
}

func (b *Bot) cmdRoster(ctx context.Context, req *Request) error {
	saved := b.svc.Roster(ctx)
	text := "Roster\n" + renderNames(saved)
	if d, ok := b.drafts.get(req.Chat.ChatID); ok {
		text += "\n\nDraft (unsaved)\n" + renderNames(d)
	}
	return b.send(ctx, req, text)
}

func (b *Bot) cmdAdd(ctx context.Context, req *Request) error {
	name := strings.TrimSpace(strings.Join(req.Args, " "))
	cur := b.draftFor(ctx, req)
	if err := roster.ValidateName(cur, name); err != nil {
		return b.send(ctx, req, describe(err))
	}
	return b.updateDraft(ctx, req, roster.AddName(cur, name))
}

func (b *Bot) cmdRemove(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return b.send(ctx, req, "usage: /remove <position>")
	}
	i, err := parseIndex(req.Args[0])
	if err != nil {
		return b.send(ctx, req, err.Error())
	}
	next, err := roster.RemoveName(b.draftFor(ctx, req), i)
	if err != nil {
		return b.send(ctx, req, describe(err))
	}
	return b.updateDraft(ctx, req, next)
}

func (b *Bot) cmdEdit(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return b.send(ctx, req, "usage: /edit <position> <name>")
	}
	i, err := parseIndex(req.Args[0])
	if err != nil {
		return b.send(ctx, req, err.Error())
	}
	next, err := roster.EditName(b.draftFor(ctx, req), i, strings.Join(req.Args[1:], " "))
	if err != nil {
		return b.send(ctx, req, describe(err))
	}
	return b.updateDraft(ctx, req, next)
}

func (b *Bot) cmdMove(ctx context.Context, req *Request) error {
	if len(req.Args) != 2 {
		return b.send(ctx, req, "usage: /move <from> <to>")
	}
	from, err := parseIndex(req.Args[0])
	if err != nil {
		return b.send(ctx, req, err.Error())
	}
	to, err := parseIndex(req.Args[1])
	if err != nil {
		return b.send(ctx, req, err.Error())
	}
	next, err := roster.MoveName(b.draftFor(ctx, req), from, to)
	if err != nil {
		return b.send(ctx, req, describe(err))
	}
	return b.updateDraft(ctx, req, next)
}

func (b *Bot) cmdSave(ctx context.Context, req *Request) error {
	d, ok := b.drafts.get(req.Chat.ChatID)
	if !ok {
		return b.send(ctx, req, "Nothing to save. Start with /add, /remove, /edit or /move.")
	}
	saved, err := b.svc.SaveRoster(ctx, d)
	if err != nil {
		// keep the draft so the user can retry
		return err
	}
	b.drafts.drop(req.Chat.ChatID)
	req.Log.Info("roster saved", logx.Int("names", len(saved)))
	return b.send(ctx, req, fmt.Sprintf("Saved %d name(s).\n%s", len(saved), renderNames(saved)))
}

func (b *Bot) cmdCancel(ctx context.Context, req *Request) error {
	if !b.drafts.drop(req.Chat.ChatID) {
		return b.send(ctx, req, "No draft to discard.")
	}
	return b.send(ctx, req, "Draft discarded.")
}

func (b *Bot) cmdHelp(ctx context.Context, req *Request) error {
	return b.send(ctx, req, b.helpText(req.Args))
}

// draftFor returns the chat's draft, or a fresh copy of the saved roster.
func (b *Bot) draftFor(ctx context.Context, req *Request) roster.Roster {
	if d, ok := b.drafts.get(req.Chat.ChatID); ok {
		return d
	}
	return b.svc.Roster(ctx).Clone()
}

func (b *Bot) updateDraft(ctx context.Context, req *Request, next roster.Roster) error {
	b.drafts.put(req.Chat.ChatID, next)
	return b.send(ctx, req, "Draft\n"+renderNames(next)+"\n\n/save to apply, /cancel to discard")
}

func (b *Bot) helpText(args []string) string {
	if len(args) > 0 {
		word := strings.ToLower(strings.TrimPrefix(args[0], "/"))
		c, ok := b.router.lookup(word)
		if !ok {
			return "command not found. try /help"
		}
		lines := []string{"/" + c.Name + ": " + c.Description, "Usage: " + c.Usage}
		if len(c.Aliases) > 0 {
			lines = append(lines, "Aliases: /"+strings.Join(c.Aliases, ", /"))
		}
		return strings.Join(lines, "\n")
	}
	lines := []string{"Commands (use /help <cmd>):"}
	for _, c := range b.router.Commands() {
		lines = append(lines, "/"+c.Name+" - "+c.Description)
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) renderEntry(e schedule.Entry) string {
	return fmt.Sprintf("%s (%s) - %s", b.svc.FormatDate(e.Date), e.Date.Weekday().String()[:3], e.Responsible)
}

func (b *Bot) renderEntries(entries []schedule.Entry) string {
	if len(entries) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, b.renderEntry(e))
	}
	return strings.Join(lines, "\n")
}

func renderNames(r roster.Roster) string {
	if len(r) == 0 {
		return "(empty)"
	}
	lines := make([]string, 0, len(r))
	for i, n := range r {
		lines = append(lines, strconv.Itoa(i+1)+". "+n)
	}
	return strings.Join(lines, "\n")
}

// describe turns roster errors into chat replies with 1-based positions.
func describe(err error) string {
	var ie *roster.IndexError
	switch {
	case errors.As(err, &ie):
		return fmt.Sprintf("position %d does not exist (the list has %d)", ie.Index+1, ie.Len)
	case errors.Is(err, roster.ErrBlankName):
		return "name cannot be empty"
	case errors.Is(err, roster.ErrDuplicateName):
		return "that name is already in the list"
	default:
		return err.Error()
	}
}
