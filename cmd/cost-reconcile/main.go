package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/mmdatafocus/retail_backend/workflow"
)

func main() {
	fix := flag.Bool("fix", false, "Rewrite drifted accumulators from completed purchases")
	batchSize := flag.Int("batch-size", 200, "Variants per page")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	report, err := workflow.RunCostReconciliation(context.Background(), workflow.CostReconciliationOptions{
		Fix:       *fix,
		BatchSize: *batchSize,
	})
	if errors.Is(err, utils.ErrJobAlreadyRunning) {
		fmt.Fprintln(os.Stderr, "cost reconciliation is already running")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cost reconciliation failed: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	if len(report.Drifts) > report.Fixed {
		os.Exit(2)
	}
}
