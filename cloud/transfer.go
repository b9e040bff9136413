/*
Copyright © 2024 the DriftVal authors.
This file is part of DriftVal.

DriftVal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DriftVal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DriftVal.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// Downloader copies remote inputs to a temporary directory.
type Downloader struct {
	// Client makes HTTP requests. It defaults to http.DefaultClient.
	Client *http.Client

	// NewBackOff returns the retry policy for HTTP downloads. It
	// defaults to exponential back-off for up to five minutes.
	NewBackOff func() backoff.BackOff

	// Log receives retry messages. It defaults to the standard logger.
	Log logrus.FieldLogger

	dir string
}

func (d *Downloader) tempDir() (string, error) {
	if d.dir == "" {
		dir, err := ioutil.TempDir("", "driftval")
		if err != nil {
			return "", fmt.Errorf("cloud: creating temporary download directory: %v", err)
		}
		d.dir = dir
	}
	return d.dir, nil
}

// Close removes downloaded files.
func (d *Downloader) Close() error {
	if d.dir == "" {
		return nil
	}
	return os.RemoveAll(d.dir)
}

// Fetch checks if path is an existing local file and returns it if so.
// Otherwise, if path is an HTTP(S) URL or a blob, the file is downloaded
// and the path to the downloaded file is returned. For shapefiles, all
// associated files are downloaded and the path to the file with the
// ".shp" extension is returned.
func (d *Downloader) Fetch(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	switch {
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		return d.fetch(path, func(name string, w *os.File) error { return d.downloadHTTP(ctx, name, w) })
	case IsBlob(path):
		bucketName, _, err := splitBlob(path)
		if err != nil {
			return "", err
		}
		bucket, err := OpenBucket(ctx, bucketName)
		if err != nil {
			return "", err
		}
		defer bucket.Close()
		return d.fetch(path, func(name string, w *os.File) error {
			_, key, err := splitBlob(name)
			if err != nil {
				return err
			}
			return readBlob(ctx, bucket, key, w)
		})
	}
	return "", fmt.Errorf("cloud: file %s does not exist", path)
}

// fetch copies path and any associated shapefile files into the
// download directory using get.
func (d *Downloader) fetch(path string, get func(name string, w *os.File) error) (string, error) {
	dir, err := d.tempDir()
	if err != nil {
		return "", err
	}
	names := expandShp(path)
	for _, name := range names {
		local := filepath.Join(dir, filepath.Base(name))
		w, err := os.Create(local)
		if err != nil {
			return "", fmt.Errorf("cloud: creating file for download: %v", err)
		}
		if err := get(name, w); err != nil {
			w.Close()
			return "", err
		}
		if err := w.Close(); err != nil {
			return "", fmt.Errorf("cloud: %v", err)
		}
	}
	return filepath.Join(dir, filepath.Base(names[0])), nil
}

// downloadHTTP writes the body at url to w, retrying server and
// network errors.
func (d *Downloader) downloadHTTP(ctx context.Context, url string, w *os.File) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	var b backoff.BackOff
	if d.NewBackOff != nil {
		b = d.NewBackOff()
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = 5 * time.Minute
		b = eb
	}
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	return backoff.RetryNotify(
		func() error {
			req, err := http.NewRequest(http.MethodGet, url, nil)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("cloud: %v", err))
			}
			resp, err := client.Do(req.WithContext(ctx))
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return fmt.Errorf("cloud: downloading %s: %v", url, err)
			}
			defer resp.Body.Close()
			switch {
			case resp.StatusCode >= 500:
				return fmt.Errorf("cloud: downloading %s: %s", url, resp.Status)
			case resp.StatusCode != http.StatusOK:
				return backoff.Permanent(fmt.Errorf("cloud: downloading %s: %s", url, resp.Status))
			}
			// Discard anything written by a failed attempt.
			if err := w.Truncate(0); err != nil {
				return backoff.Permanent(fmt.Errorf("cloud: %v", err))
			}
			if _, err := w.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(fmt.Errorf("cloud: %v", err))
			}
			if _, err := io.Copy(w, resp.Body); err != nil {
				return fmt.Errorf("cloud: downloading %s: %v", url, err)
			}
			return nil
		},
		backoff.WithContext(b, ctx),
		func(err error, wait time.Duration) {
			log.WithFields(logrus.Fields{"url": url, "wait": wait}).Warnf("%v: retrying", err)
		},
	)
}

// readBlob copies the given blob from the given bucket to w.
func readBlob(ctx context.Context, bucket *blob.Bucket, key string, w io.Writer) error {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("cloud: reading blob key %s: %v", key, err)
	}
	defer r.Close()
	if _, err = io.Copy(w, r); err != nil {
		return fmt.Errorf("cloud: reading blob key %s: %v", key, err)
	}
	return nil
}

// Uploader stages outputs bound for blob storage in a temporary
// directory and uploads them when Upload is called.
type Uploader struct {
	// files is a set of file path pairs. The first of each pair
	// is a local file path and the second is a blob storage
	// path where it should be uploaded to.
	files [][2]string
	dir   string
}

// Stage checks whether the given output file path refers to a blob
// storage location. If it does, then a temporary file location is
// returned and the file will be uploaded when Upload is called.
func (u *Uploader) Stage(path string) (string, error) {
	if !IsBlob(path) {
		return path, nil
	}
	if _, _, err := splitBlob(path); err != nil {
		return "", err
	}
	if u.dir == "" {
		dir, err := ioutil.TempDir("", "driftval")
		if err != nil {
			return "", fmt.Errorf("cloud: creating staging directory: %v", err)
		}
		u.dir = dir
	}
	files := expandShp(path)
	for _, f := range files {
		u.files = append(u.files, [2]string{
			filepath.Join(u.dir, filepath.Base(f)),
			f,
		})
	}
	return filepath.Join(u.dir, filepath.Base(files[0])), nil
}

// Upload copies the staged files to blob storage and removes the
// staging directory.
func (u *Uploader) Upload(ctx context.Context) error {
	for _, files := range u.files {
		if err := upload(ctx, files[0], files[1]); err != nil {
			return err
		}
	}
	u.files = nil
	if u.dir != "" {
		err := os.RemoveAll(u.dir)
		u.dir = ""
		return err
	}
	return nil
}

func upload(ctx context.Context, local, remote string) error {
	r, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("cloud: opening file '%s' for upload: %s", local, err)
	}
	defer r.Close()
	bucketName, key, err := splitBlob(remote)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("cloud: opening bucket to upload file '%s': %s", remote, err)
	}
	defer bucket.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: opening writer to upload file '%s': %s", remote, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: uploading file '%s' to '%s': %s", local, remote, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %v", remote, err)
	}
	return nil
}

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise
func expandShp(filename string) []string {
	o := []string{filename}
	ext := filepath.Ext(filename)
	if ext != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}
