// Command agent is the field-agent device client: it records cash deposits
// into a local queue while offline and replays them against the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	intconfig "bustix/internal/config"
	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/http/middleware"
	"bustix/internal/offline"
	"bustix/internal/utils"
)

const usage = `usage: agent <command> [flags]

commands:
  deposit -account <id> -amount <rupiah>   antrekan top-up tunai
  list                                    tampilkan antrean
  sync                                    kirim antrean sekarang
  watch                                   sinkron otomatis saat online
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	env := intconfig.LoadAgentEnv()
	utils.InitLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	var err error
	switch os.Args[1] {
	case "deposit":
		err = runDeposit(env, os.Args[2:])
	case "list":
		err = runList(env)
	case "sync":
		err = runSync(env, os.Args[2:])
	case "watch":
		err = runWatch(env, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openQueue(env intconfig.AgentEnv) (*offline.Queue, func(), error) {
	store, err := offline.OpenBoltStore(env.QueuePath)
	if err != nil {
		return nil, nil, err
	}
	return offline.NewQueue(store, env.DeviceID), func() { _ = store.Close() }, nil
}

func runDeposit(env intconfig.AgentEnv, args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ExitOnError)
	account := fs.String("account", "", "customer account id")
	rawAmount := fs.String("amount", "", `amount, e.g. 150000 or "Rp 150.000"`)
	_ = fs.Parse(args)

	amount, err := utils.ParseRupiahToInt(*rawAmount)
	if err != nil || amount <= 0 {
		return domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	q, closeFn, err := openQueue(env)
	if err != nil {
		return err
	}
	defer closeFn()

	entry, err := q.Enqueue(models.LedgerRequest{
		AccountID: *account,
		Type:      models.TxTopUp,
		Amount:    amount,
	})
	if err != nil {
		return err
	}
	fmt.Printf("queued #%d %s %s -> %s\n", entry.Seq, entry.IdempotencyKey, utils.FormatRupiah(amount), entry.Operation.AccountID)
	return nil
}

func runList(env intconfig.AgentEnv) error {
	q, closeFn, err := openQueue(env)
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := q.Entries()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("antrean kosong")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("#%d %-8s %-10s %s %s attempts=%d", e.Seq, e.State, e.Operation.AccountID, e.Operation.Type, utils.FormatRupiah(e.Operation.Amount), e.Attempts)
		if e.LastError != "" {
			line += " last_error=" + e.LastError
		}
		fmt.Println(line)
	}
	return nil
}

// token returns AGENT_TOKEN, or signs a development token with JWT_SECRET
// when -agent-id is given.
func token(env intconfig.AgentEnv, agentID string) (string, error) {
	if env.Token != "" || agentID == "" {
		return env.Token, nil
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", fmt.Errorf("AGENT_TOKEN or JWT_SECRET is required")
	}
	return middleware.SignToken([]byte(secret), agentID, domain.RoleAgent, 12*time.Hour)
}

func newSyncer(env intconfig.AgentEnv, q *offline.Queue, agentID string, conn offline.Connectivity) (*offline.Syncer, error) {
	tok, err := token(env, agentID)
	if err != nil {
		return nil, err
	}
	return &offline.Syncer{
		Queue:        q,
		Submitter:    offline.HTTPSubmitter{BaseURL: env.ServerURL, Token: tok},
		Connectivity: conn,
	}, nil
}

func runSync(env intconfig.AgentEnv, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	agentID := fs.String("agent-id", "", "sign a dev token for this agent")
	_ = fs.Parse(args)

	q, closeFn, err := openQueue(env)
	if err != nil {
		return err
	}
	defer closeFn()

	syncer, err := newSyncer(env, q, *agentID, nil)
	if err != nil {
		return err
	}
	report, err := syncer.Sync(context.Background())
	fmt.Printf("attempted=%d synced=%d failed=%d skipped=%d\n", report.Attempted, report.Synced, report.Failed, report.Skipped)
	for _, r := range report.Results {
		if r.Error != "" {
			fmt.Printf("  %s %s: %s\n", r.AccountID, r.IdempotencyKey, r.Error)
		}
	}
	return err
}

func runWatch(env intconfig.AgentEnv, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	agentID := fs.String("agent-id", "", "sign a dev token for this agent")
	_ = fs.Parse(args)

	q, closeFn, err := openQueue(env)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	signalState := offline.NewSignal(false)
	probe := offline.HealthProbe{
		URL:      healthURL(env.ServerURL),
		Interval: env.PollEvery,
		Signal:   signalState,
	}
	syncer, err := newSyncer(env, q, *agentID, signalState)
	if err != nil {
		return err
	}

	// SIGUSR1 forces a retry without waiting for a connectivity change.
	manual := make(chan struct{}, 1)
	usr := make(chan os.Signal, 1)
	signal.Notify(usr, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-usr:
				select {
				case manual <- struct{}{}:
				default:
				}
			}
		}
	}()

	go probe.Run(ctx)
	utils.Logger().Infof("agent %s watching %s", env.DeviceID, env.ServerURL)
	syncer.Run(ctx, manual)
	return nil
}

func healthURL(server string) string {
	return strings.TrimRight(server, "/") + "/api/health"
}
