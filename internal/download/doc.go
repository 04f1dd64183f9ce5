// Package download provides the download, validate and extract pipeline
// for BLAST database archives.
//
// # Manager
//
// The Manager drains a Queue of work items with a fixed pool of workers.
// Each item goes through:
//
//  1. Download the archive, unless it is already on disk
//  2. Download the checksum file, unless it is already on disk
//  3. Validate the archive digest against the checksum file
//  4. Extract the archive next to itself without overwriting existing files
//
// # Basic Usage
//
//	manager := download.NewManager(download.DefaultOptions(), ftpClient, logger, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	summary := manager.Run(ctx, items)
//	if !summary.OK() {
//	    for _, item := range summary.Failed {
//	        fmt.Println("failed:", item.FileName)
//	    }
//	}
//
// # Concurrency
//
// Options.Workers goroutines share one Queue. An item belongs to the worker
// that took it until that worker calls Done or Requeue, so its Attempts
// counter is never touched concurrently. Run returns after Join, when every
// put and re-queued item has been settled.
//
// The progress callback is called from several workers at once and must be
// safe for concurrent use.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
//
// # Retry Logic
//
// A failure at any step re-queues the item, which then starts again from the
// download step. After Options.MaxRetries re-queues the item is reported in
// Summary.Failed. A failed item never stops the other workers.
package download
