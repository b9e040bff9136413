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

// Package cloud moves input and output files between local disk, web
// servers and blob storage.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// Environment variables that configure S3 buckets. RegionEnv falls back
// to AWS_REGION and then to us-east-2. EndpointEnv, if set, points the
// client at an S3-compatible server with path-style addressing.
// ProfileEnv names the shared credentials profile used when the AWS
// credential variables are not set.
const (
	RegionEnv   = "DRIFTVAL_S3_REGION"
	EndpointEnv = "DRIFTVAL_S3_ENDPOINT"
	ProfileEnv  = "DRIFTVAL_AWS_PROFILE"
)

const defaultRegion = "us-east-2"

type opener func(ctx context.Context, name string) (*blob.Bucket, error)

// openers holds the bucket opener of each storage provider.
var openers = map[string]opener{
	"file": fileBucket,
	"gs":   gsBucket,
	"s3":   s3Bucket,
}

func providers() []string {
	o := make([]string, 0, len(openers))
	for p := range openers {
		o = append(o, p)
	}
	sort.Strings(o)
	return o
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name'. Only the
// host part of bucketName is used as the bucket name. The providers are
// "file" for the local filesystem, "gs" for Google Cloud Storage, and
// "s3" for AWS S3 or a compatible server. A "file" bucket without a name
// is the filesystem root.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening bucket %s: %v", bucketName, err)
	}
	open, ok := openers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("cloud: bucket %s has unsupported provider %q; valid providers are %v",
			bucketName, u.Scheme, providers())
	}
	b, err := open(ctx, u.Hostname())
	if err != nil {
		return nil, fmt.Errorf("cloud: opening bucket %s: %v", bucketName, err)
	}
	return b, nil
}

func fileBucket(_ context.Context, dir string) (*blob.Bucket, error) {
	if dir == "" {
		dir = "/"
	}
	return fileblob.OpenBucket(dir, nil)
}

// gsBucket opens a Google Cloud Storage bucket with the application
// default credentials.
func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding Google Cloud credentials: %v", err)
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Config returns the AWS configuration for S3 buckets. Credentials come
// from the AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY variables or
// otherwise from the shared credentials file.
func s3Config() *aws.Config {
	region := os.Getenv(RegionEnv)
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = defaultRegion
	}
	c := &aws.Config{
		Region: aws.String(region),
		Credentials: credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvProvider{},
			&credentials.SharedCredentialsProvider{Profile: os.Getenv(ProfileEnv)},
		}),
	}
	if ep := os.Getenv(EndpointEnv); ep != "" {
		c.Endpoint = aws.String(ep)
		c.S3ForcePathStyle = aws.Bool(true)
	}
	return c
}

func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	s, err := session.NewSession(s3Config())
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}

// IsBlob returns whether path is in a blob storage bucket, that is
// whether it starts with the name of a provider followed by "://".
func IsBlob(path string) bool {
	for p := range openers {
		if strings.HasPrefix(path, p+"://") {
			return true
		}
	}
	return false
}

// splitBlob returns the bucket and the key of a blob path.
func splitBlob(path string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("cloud: parsing blob path %s: %v", path, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("cloud: blob path %s has no key", path)
	}
	return u.Scheme + "://" + u.Host, key, nil
}
