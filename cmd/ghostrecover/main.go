// Command ghostrecover is the forensic recovery CLI: scan, detect,
// recover, and timeline subcommands over an image or block device,
// generalizing the teacher's single flag-parsed recover binary (device
// + fs + output + scan/carve flags) into a cobra command tree, the way
// willibrandon-mtlog-audit and wiwaszko-intel-os-image-composer
// structure their own multi-subcommand CLIs.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/shubham/ghostrecover/internal/btrfs"
	"github.com/shubham/ghostrecover/internal/config"
	"github.com/shubham/ghostrecover/internal/evidence"
	"github.com/shubham/ghostrecover/internal/exfat"
	"github.com/shubham/ghostrecover/internal/ghosterr"
	"github.com/shubham/ghostrecover/internal/model"
	"github.com/shubham/ghostrecover/internal/recovery"
	"github.com/shubham/ghostrecover/internal/recoverwrite"
	"github.com/shubham/ghostrecover/internal/sessionstore"
	"github.com/shubham/ghostrecover/internal/timeline"
)

// exit codes per spec §6.
const (
	exitSuccess         = 0
	exitUsage           = 1
	exitUnsupportedFS   = 2
	exitIO              = 3
	exitNoRecoverable   = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	log, _ := zap.NewProduction()
	defer log.Sync()
	sugar := log.Sugar()

	var fsFlag string
	var confidence float64
	var infoOnly bool
	var outDir string
	var idStrings []string

	root := &cobra.Command{
		Use:   "ghostrecover",
		Short: "Forensic deleted-file recovery across XFS, Btrfs, and exFAT",
	}

	exitCode := exitSuccess

	scanCmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Scan an image for recoverable files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, code, err := runScan(args[0], fsFlag, confidence, sugar)
			exitCode = code
			if err != nil {
				return err
			}
			if infoOnly {
				fmt.Printf("filesystem: %s\nfiles_found: %d\nscan_duration_ms: %d\n",
					session.Fsid, len(session.ScanResults), session.Metadata.ScanDurationMs)
				return nil
			}
			for _, f := range session.ScanResults {
				name := recoverwrite.OutputName(f)
				fmt.Printf("%d\t%.2f\t%s\n", f.ID, f.Confidence, name)
			}
			if len(session.ScanResults) == 0 {
				exitCode = exitNoRecoverable
			}
			return nil
		},
	}
	scanCmd.Flags().StringVar(&fsFlag, "fs", "auto", "filesystem type: auto, xfs, btrfs, exfat")
	scanCmd.Flags().Float64Var(&confidence, "confidence", 0.5, "minimum confidence threshold")
	scanCmd.Flags().BoolVar(&infoOnly, "info", false, "print summary only, not per-file rows")

	detectCmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Detect the filesystem type of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := blocksource.Open(args[0])
			if err != nil {
				exitCode = exitIO
				return err
			}
			defer src.Close()
			fsid, ok := detectFsid(src)
			if !ok {
				fmt.Println("none")
				exitCode = exitNoRecoverable
				return nil
			}
			fmt.Println(fsid)
			return nil
		},
	}

	recoverCmd := &cobra.Command{
		Use:   "recover <image>",
		Short: "Recover deleted files to --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				exitCode = exitUsage
				return ghosterr.New(ghosterr.KindIO, "--out is required")
			}
			session, code, err := runScan(args[0], fsFlag, confidence, sugar)
			exitCode = code
			if err != nil {
				return err
			}
			if len(session.ScanResults) == 0 {
				exitCode = exitNoRecoverable
				fmt.Println("no recoverable files at the requested threshold")
				return nil
			}

			src, err := blocksource.Open(args[0])
			if err != nil {
				exitCode = exitIO
				return err
			}
			defer src.Close()

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				exitCode = exitIO
				return err
			}
			audit, err := evidence.OpenAuditLog(outDir + "/audit.jsonl")
			if err != nil {
				exitCode = exitIO
				return err
			}
			defer audit.Close()

			manifest := evidence.NewManifest(session.ID.String(), evidence.AlgorithmSHA256)
			unit := model.Unit(session.Fsid)
			blockSize := int64(session.Metadata.BlockSize)
			if blockSize == 0 {
				blockSize = 4096
			}

			wanted := idSet(idStrings)
			recovered := 0
			for _, f := range session.ScanResults {
				if len(wanted) > 0 && !wanted[f.ID] {
					continue
				}
				res, err := recoverwrite.Write(src, f, outDir, unit, blockSize)
				if err != nil {
					sugar.Warnw("recover file failed", "id", f.ID, "error", err)
					continue
				}
				recoverwrite.LogResult(audit, session.ID, f, res)
				_ = manifest.AddFile(res.OutputPath)
				recovered++
			}
			if err := manifest.WriteJSON(outDir + "/hash_manifest.json"); err != nil {
				exitCode = exitIO
				return err
			}
			fmt.Printf("recovered %d files to %s\n", recovered, outDir)
			return nil
		},
	}
	recoverCmd.Flags().StringVar(&fsFlag, "fs", "auto", "filesystem type: auto, xfs, btrfs, exfat")
	recoverCmd.Flags().Float64Var(&confidence, "confidence", 0.5, "minimum confidence threshold")
	recoverCmd.Flags().StringVar(&outDir, "out", "", "output directory (required)")
	recoverCmd.Flags().StringSliceVar(&idStrings, "ids", nil, "recover only these file ids")

	var sessionDir string
	timelineCmd := &cobra.Command{
		Use:   "timeline",
		Short: "Render the deletion timeline for a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sessionstore.NewJSONFileStore(sessionDir)
			if err != nil {
				exitCode = exitIO
				return err
			}
			id, err := parseSessionID(args[0])
			if err != nil {
				exitCode = exitUsage
				return err
			}
			session, err := store.Load(id)
			if err != nil {
				exitCode = exitIO
				return err
			}
			events := timeline.BuildEvents(session.ScanResults)
			patterns := timeline.DetectPatterns(events)
			for _, e := range events {
				fmt.Printf("%s\t%s\t%d\n", e.Timestamp.Format(time.RFC3339), e.EventType, e.FileID)
			}
			for _, p := range patterns {
				fmt.Printf("pattern: %s confidence=%.1f files=%d\n", p.Type, p.Confidence, len(p.AffectedFiles))
			}
			return nil
		},
	}
	timelineCmd.Flags().StringVar(&sessionDir, "session-dir", "./sessions", "directory holding saved sessions")

	root.AddCommand(scanCmd, detectCmd, recoverCmd, timelineCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == exitSuccess {
			exitCode = exitUsage
		}
		return exitCode
	}
	return exitCode
}

func runScan(imagePath, fsFlag string, confidenceThreshold float64, log *zap.SugaredLogger) (model.RecoverySession, int, error) {
	src, err := blocksource.Open(imagePath)
	if err != nil {
		return model.RecoverySession{}, exitIO, err
	}
	defer src.Close()

	fsid, err := resolveFsid(src, fsFlag)
	if err != nil {
		return model.RecoverySession{}, exitUnsupportedFS, err
	}

	cfg := config.Default()
	cfg.MinConfidenceThreshold = float32(confidenceThreshold)

	eng := recovery.New(src, cfg, log, nil)
	session, err := eng.Run(fsid, imagePath)
	if err != nil {
		if ge, ok := err.(*ghosterr.Error); ok && ge.Kind() == ghosterr.KindInvalidFS {
			return session, exitUnsupportedFS, err
		}
		return session, exitIO, err
	}
	return session, exitSuccess, nil
}

func resolveFsid(src blocksource.Source, fsFlag string) (model.Fsid, error) {
	switch fsFlag {
	case "xfs":
		return model.FsidXFS, nil
	case "btrfs":
		return model.FsidBtrfs, nil
	case "exfat":
		return model.FsidExFAT, nil
	case "", "auto":
		fsid, ok := detectFsid(src)
		if !ok {
			return 0, ghosterr.New(ghosterr.KindInvalidFS, "could not auto-detect filesystem")
		}
		return fsid, nil
	default:
		return 0, ghosterr.New(ghosterr.KindInvalidFS, "unknown --fs value: "+fsFlag)
	}
}

// detectFsid tries each filesystem's own magic, the way the teacher's
// disk.DetectFilesystem tries NTFS/FAT32 signatures in turn.
func detectFsid(src blocksource.Source) (model.Fsid, bool) {
	if _, err := exfat.ReadBootSector(src); err == nil {
		return model.FsidExFAT, true
	}
	if _, err := btrfs.ReadSuperblock(src); err == nil {
		return model.FsidBtrfs, true
	}
	if buf, err := src.Read(0, 4); err == nil && len(buf) == 4 &&
		buf[0] == 0x58 && buf[1] == 0x46 && buf[2] == 0x53 && buf[3] == 0x42 {
		return model.FsidXFS, true
	}
	return 0, false
}

func idSet(ids []string) map[uint64]bool {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[uint64]bool, len(ids))
	for _, s := range ids {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			continue
		}
		out[id] = true
	}
	return out
}

func parseSessionID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
