package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
)

func main() {
	domain := flag.String("domain", "", "Required: order|purchase")
	periodKey := flag.String("period", "", "Required: period key (YYYY-MM for orders, YYYYMMDD for purchases)")
	value := flag.Int64("value", -1, "Value to set (the next number issued is value+1)")
	dryRun := flag.Bool("dry-run", true, "Show the current value only (no writes)")
	confirm := flag.String("confirm", "", "Type RESET to proceed when dry-run=false")
	flag.Parse()

	d := models.SequenceDomain(strings.TrimSpace(*domain))
	if !d.IsValid() || strings.TrimSpace(*periodKey) == "" {
		fmt.Fprintln(os.Stderr, "--domain (order|purchase) and --period are required")
		os.Exit(1)
	}
	if !*dryRun && (*value < 0 || strings.TrimSpace(*confirm) != "RESET") {
		fmt.Fprintln(os.Stderr, "set --value>=0 and --confirm=RESET to proceed")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	ctx := context.Background()

	current, err := models.CurrentSequence(ctx, d, *periodKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read counter: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("domain=%s period=%s current=%d\n", d, *periodKey, current)
	if *dryRun {
		return
	}

	lockKey := string(d) + ":" + *periodKey
	err = utils.RunExclusive(ctx, "SequenceReset", lockKey, time.Minute, "sequence-reset", "main", func(ctx context.Context) error {
		return models.ResetSequence(ctx, d, *periodKey, *value)
	})
	if errors.Is(err, utils.ErrJobAlreadyRunning) {
		fmt.Fprintln(os.Stderr, "another reset for this counter is running")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("domain=%s period=%s reset to %d\n", d, *periodKey, *value)
}
