package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/session"
	"github.com/trezcool/classroom/core/user"
)

// listSessions prints the session lifecycle events of a user, oldest first.
func (cli *commandLine) listSessions(uname string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{core.CleanString(uname, true /* lower */)}})
	if err != nil {
		return err
	}
	events, err := cli.eventsRepo.QueryEvents(ctx, session.EventFilter{UserID: usr.ID})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tEVENT\tREASON\tAT")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.SessionID, ev.Kind, ev.Reason, ev.OccurredAt.Format(time.RFC3339))
	}
	return w.Flush()
}
