// Package main runs the stitch-connect Temporal worker.
package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/msnidal/stitch-connect/internal/activities"
	"github.com/msnidal/stitch-connect/internal/config"
	"github.com/msnidal/stitch-connect/internal/reportstore"
	"github.com/msnidal/stitch-connect/internal/workflows"
)

func main() {
	cfg := config.LoadWorkerConfig()

	stitchCfg := cfg.Stitch
	if err := stitchCfg.Validate(); err != nil {
		log.Fatalf("Invalid Stitch configuration: %v", err)
	}

	reports, err := reportstore.FromEnv()
	if err != nil {
		log.Fatalf("Failed to create report store: %v", err)
	}

	log.Printf("Starting stitch-connect worker: address=%s namespace=%s queue=%s account=%s",
		cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TaskQueue, stitchCfg.AccountID)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(workflows.ReplicationRunWorkflowFunc,
		workflow.RegisterOptions{Name: workflows.ReplicationRunWorkflow})
	w.RegisterWorkflowWithOptions(workflows.TestConnectionWorkflowFunc,
		workflow.RegisterOptions{Name: workflows.TestConnectionWorkflow})
	w.RegisterWorkflowWithOptions(workflows.AssetCatalogWorkflowFunc,
		workflow.RegisterOptions{Name: workflows.AssetCatalogWorkflow})

	acts := activities.NewActivities(stitchCfg, reports)
	w.RegisterActivity(acts.RunReplication)
	w.RegisterActivity(acts.ValidateConnection)
	w.RegisterActivity(acts.CollectAssetCatalog)
	w.RegisterActivity(acts.ArchiveRunReport)

	log.Printf("Registered 3 workflows and 4 activities")

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
