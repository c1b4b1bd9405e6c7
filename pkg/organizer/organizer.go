// Package organizer unpacks a delivered setup archive and installs its files
// under {root}/{car}/[{subfolder}/]{track}/{package}.
package organizer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
	"setupsync/pkg/models"
	"setupsync/pkg/sanitize"
	"setupsync/pkg/storage"
)

// Options controls how archives are interpreted.
type Options struct {
	// Subfolder is inserted between the car and track directories when set.
	Subfolder string
	// ScratchDir holds temporary extraction directories; empty means the
	// system temp directory.
	ScratchDir string
	// SetupExtension identifies setup files, compared case-insensitively.
	SetupExtension string
	// RaceMarker picks the file that names the package.
	RaceMarker string
}

// Organizer installs archives through a storage manager.
type Organizer struct {
	store  *storage.Manager
	opts   Options
	logger logger.Logger
}

// New creates an Organizer.
func New(store *storage.Manager, opts Options, log logger.Logger) *Organizer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.SetupExtension == "" {
		opts.SetupExtension = ".sto"
	}
	return &Organizer{store: store, opts: opts, logger: log}
}

// layout is what the archive's structure says about its destination.
type layout struct {
	category1 string
	category2 string
	pkg       string
	sourceDir string
}

// Organize installs archive and returns the resulting item. The archive is
// deleted on success and kept on any failure.
func (o *Organizer) Organize(archive models.DeliveredArchive) (*models.ProcessedItem, error) {
	log := o.logger.WithFields(map[string]interface{}{
		"archive": filepath.Base(archive.Path),
		"link":    archive.Link,
	})

	item, err := o.install(archive)
	if err != nil {
		log.WithError(err).Error("Failed to organize archive")
		if ok, _ := afero.Exists(o.store.Fs(), archive.Path); ok {
			log.Warn("Archive kept for manual recovery")
		}
		return nil, err
	}

	if err := o.store.Remove(archive.Path); err != nil {
		log.WithError(err).Warn("Installed setup but could not delete archive")
	}
	log.InfoWithFields("Setup installed", map[string]interface{}{
		"name":        item.Name,
		"destination": o.store.Rel(item.Destination),
	})
	return item, nil
}

func (o *Organizer) install(archive models.DeliveredArchive) (*models.ProcessedItem, error) {
	fs := o.store.Fs()

	scratch, err := o.store.TempDir(o.opts.ScratchDir, "setupsync-extract-")
	if err != nil {
		return nil, errs.Organize("failed to create scratch directory", err)
	}
	defer fs.RemoveAll(scratch)

	if err := extract(fs, archive.Path, scratch); err != nil {
		return nil, errs.Organize("failed to extract archive", err)
	}

	l, err := o.inspect(scratch)
	if err != nil {
		return nil, err
	}

	subfolder := ""
	if o.opts.Subfolder != "" {
		subfolder = sanitize.Filename(o.opts.Subfolder)
	}
	dest := o.store.Destination(
		sanitize.Filename(l.category1),
		subfolder,
		sanitize.Filename(l.category2),
		sanitize.Filename(l.pkg),
	)

	if _, err := o.store.Replace(dest); err != nil {
		return nil, errs.Organize("failed to prepare destination", err)
	}
	if err := o.store.MoveContents(l.sourceDir, dest); err != nil {
		return nil, errs.Organize("failed to move setup files", err)
	}

	item := models.NewProcessedItem(l.category1, l.category2, sanitize.Filename(l.pkg), dest, archive.Link)
	return &item, nil
}

// inspect derives car, track and package from the extracted tree.
func (o *Organizer) inspect(root string) (*layout, error) {
	setups, err := o.findSetups(root)
	if err != nil {
		return nil, errs.Organize("failed to scan extracted archive", err)
	}
	if len(setups) == 0 {
		return nil, errs.Organize(fmt.Sprintf("no %s setup files found in archive", o.opts.SetupExtension), nil)
	}

	// car and track are the two directories above the first setup file.
	// Deeper directories in the archive cannot supply them.
	first := setups[0]
	parts := relParts(root, first)
	if len(parts) < 3 {
		return nil, errs.Organize("could not determine car/track folder structure", nil)
	}

	named := first
	if o.opts.RaceMarker != "" {
		for _, s := range setups {
			if strings.Contains(filepath.Base(s), o.opts.RaceMarker) {
				named = s
				break
			}
		}
	}
	base := filepath.Base(named)
	pkg := strings.TrimSuffix(base, filepath.Ext(base))

	l := &layout{
		category1: parts[0],
		category2: parts[1],
		pkg:       pkg,
		sourceDir: filepath.Dir(first),
	}
	for name, v := range map[string]string{"car": l.category1, "track": l.category2, "package": l.pkg} {
		if sanitize.Filename(v) == "" {
			return nil, errs.Organize(fmt.Sprintf("%s name %q is empty after sanitizing", name, v), nil)
		}
	}
	return l, nil
}

// findSetups lists setup files in lexical walk order.
func (o *Organizer) findSetups(root string) ([]string, error) {
	var found []string
	err := afero.Walk(o.store.Fs(), root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(path), o.opts.SetupExtension) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// relParts splits path relative to base, or returns nil when path is not
// below base.
func relParts(base, path string) []string {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}

// extract unpacks the zip at path into dest, refusing members that would land
// outside dest.
func extract(fs afero.Fs, path, dest string) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return err
	}

	prefix := filepath.Clean(dest) + string(filepath.Separator)
	for _, member := range zr.File {
		target := filepath.Join(dest, member.Name)
		if !strings.HasPrefix(target, prefix) {
			return fmt.Errorf("archive member %q escapes the extraction directory", member.Name)
		}
		if member.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(fs, member, target); err != nil {
			return fmt.Errorf("extract %s: %w", member.Name, err)
		}
	}
	return nil
}

func extractFile(fs afero.Fs, member *zip.File, target string) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := member.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
