// Command finch runs an interactive demo session against the assembled
// agent: type as the child, watch decisions and parent alerts inline.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/finchkit/finch"
	"github.com/finchkit/finch/alerts"
	"github.com/finchkit/finch/config"
	"github.com/finchkit/finch/core"
	"github.com/finchkit/finch/obs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	name := flag.String("name", "Ada", "child name for the demo profile")
	age := flag.Int("age", 8, "child age for the demo profile")
	policyFile := flag.String("policy", "", "path to a YAML policy file")
	verbose := flag.Bool("verbose", false, "print decisions and plan state per turn")
	flag.Parse()

	settings := config.FromEnv()
	if *policyFile != "" {
		settings.PolicyFile = *policyFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := obs.Init(ctx, settings.ObsOptions())
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	sink := alerts.NewInMemorySink()
	agent, err := finch.NewAgent(
		finch.WithSettings(settings),
		finch.WithAlertSink(sink),
	)
	if err != nil {
		return err
	}

	profile := core.ChildProfile{
		ChildID:      "demo-child",
		Name:         *name,
		Age:          *age,
		Band:         core.BandForAge(*age),
		MusicEnabled: true,
	}
	session := agent.Session(profile)

	if settings.GeminiAPIKey == "" {
		fmt.Println("no GEMINI_API_KEY set: running with the pattern classifier and heuristic intent only")
	}
	fmt.Printf("session %s started for %s (age %d). Ctrl-D to quit.\n\n", session.ID(), *name, *age)

	scanner := bufio.NewScanner(os.Stdin)
	delivered := 0
	for {
		fmt.Printf("%s> ", *name)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		res, err := session.Send(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
			continue
		}

		fmt.Printf("finch> %s\n", res.Response)
		if *verbose {
			fmt.Printf("  [state=%s intent=%s", res.State, res.Intent.Type)
			if res.InputDecision != nil {
				fmt.Printf(" input=%s", res.InputDecision.Action)
			}
			if res.OutputDecision != nil {
				fmt.Printf(" output=%s", res.OutputDecision.Action)
			}
			fmt.Println("]")
		}

		for _, alert := range sink.Alerts()[delivered:] {
			fmt.Printf("  !! parent alert (%s): %s\n", alert.Urgency, alert.Subject)
		}
		delivered = len(sink.Alerts())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("\nsession over: %d parent alerts, %d trace records\n",
		len(sink.Alerts()), len(agent.Store().Traces(profile.ChildID)))
	return nil
}
