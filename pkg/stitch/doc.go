// Package stitch is a typed client for the Stitch Connect API v4.
//
// It covers the surface an orchestrator needs to drive replication:
// inspecting sources and their streams, triggering a replication job for a
// source, and polling the account's extraction and load records until the
// job reaches a terminal state. The blocking entry point is
// Client.StartReplicationJobAndPoll, which returns a SyncReport describing
// what Stitch extracted and loaded.
//
// Account and source identifiers come from the Stitch UI URL pattern
// https://app.stitchdata.com/client/{account_id}/pipeline/v2/sources/{source_id}/summary.
package stitch
