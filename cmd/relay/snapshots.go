package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/andresuchdata/timesheet-relay/internal/storage"
	"github.com/urfave/cli/v2"
)

func listSnapshots(c *cli.Context) error {
	bucket, err := requireBucket(c)
	if err != nil {
		return err
	}

	store, err := objectStorage(c)
	if err != nil {
		return err
	}

	objects, err := store.ListObjects(c.Context, bucket, c.String("prefix"))
	if err != nil {
		return fmt.Errorf("failed to list objects for prefix %s: %w", c.String("prefix"), err)
	}
	sortNewestFirst(objects)

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tLAST MODIFIED")
	for _, obj := range objects {
		fmt.Fprintf(w, "%s\t%d\t%s\n", obj.Key, obj.Size, obj.LastModified.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func downloadSnapshot(c *cli.Context) error {
	bucket, err := requireBucket(c)
	if err != nil {
		return err
	}

	objects, err := objectStorage(c)
	if err != nil {
		return err
	}

	prefix := c.String("prefix")
	var key string
	switch {
	case c.Bool("latest"):
		stored, err := objects.ListObjects(c.Context, bucket, prefix)
		if err != nil {
			return fmt.Errorf("failed to list objects for prefix %s: %w", prefix, err)
		}
		latest, ok := latestSnapshot(stored)
		if !ok {
			return fmt.Errorf("no snapshots found for prefix %s", prefix)
		}
		key = latest.Key
	case c.Args().Len() == 1:
		key = resolveObjectKey(prefix, c.Args().First())
	default:
		return cli.Exit("expected exactly one key argument or --latest", 2)
	}

	localPath, err := localSnapshotPath(c.String("dest"), prefix, key)
	if err != nil {
		return err
	}
	if err := objects.DownloadObject(c.Context, bucket, key, localPath); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, localPath)
	return nil
}

func requireBucket(c *cli.Context) (string, error) {
	bucket := c.String("bucket")
	if bucket == "" {
		return "", cli.Exit("bucket is required (--bucket or GCS_BUCKET_NAME)", 2)
	}
	return bucket, nil
}

// Snapshot keys embed a sortable timestamp, so key order is time order.
func sortNewestFirst(objects []storage.ObjectInfo) {
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
}

func latestSnapshot(objects []storage.ObjectInfo) (storage.ObjectInfo, bool) {
	var latest storage.ObjectInfo
	found := false
	for _, obj := range objects {
		if !strings.HasSuffix(strings.ToLower(obj.Key), ".json") {
			continue
		}
		if !found || obj.Key > latest.Key {
			latest, found = obj, true
		}
	}
	return latest, found
}

func resolveObjectKey(prefix, override string) string {
	if override == "" {
		return strings.TrimSpace(prefix)
	}
	if prefix == "" {
		return strings.TrimPrefix(override, "/")
	}

	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	overrideTrimmed := strings.TrimPrefix(strings.TrimSpace(override), "/")

	if strings.HasPrefix(overrideTrimmed, prefixTrimmed) {
		return overrideTrimmed
	}
	return fmt.Sprintf("%s/%s", prefixTrimmed, overrideTrimmed)
}

// localSnapshotPath maps key to a file under dest. Keys that would resolve
// outside dest are rejected.
func localSnapshotPath(dest, prefix, key string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(objectRelativePath(prefix, key)))
	if rel == "." || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("object key %q does not map to a path inside %s", key, dest)
	}
	return filepath.Join(dest, rel), nil
}

func objectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return filepath.Base(key)
	}
	return rel
}
