// Package s3vault stores a vault in an S3 bucket (or any S3 compatible
// store such as MinIO).
//
// Folders are key prefixes. A folder without notes is kept alive by a
// zero-byte marker object whose key ends in "/". Listings use
// ListObjectsV2 with a "/" delimiter so that each directory costs one
// paginated request, plus one small request per subfolder to fill the
// HasChildren hint.
package s3vault

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/vanderheijden86/notetree/pkg/backend"
	"github.com/vanderheijden86/notetree/pkg/debug"
	"github.com/vanderheijden86/notetree/pkg/metrics"
	"github.com/vanderheijden86/notetree/pkg/model"
)

const stateDirName = ".nt"

// API is the part of the S3 client the vault uses.
type API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config selects the bucket and how to reach it.
type Config struct {
	Bucket    string
	Prefix    string // optional key prefix the vault lives under
	Region    string
	Endpoint  string // custom endpoint for MinIO and friends
	PathStyle bool
	AccessKey string // static credentials; empty uses the default AWS chain
	SecretKey string
}

// Vault is a backend.Adapter over an S3 bucket.
type Vault struct {
	api    API
	bucket string
	prefix string // "" or ends in "/"
}

// New builds an S3 client from cfg and returns a vault using it.
func New(ctx context.Context, cfg Config) (*Vault, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 vault: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(api API, bucket, prefix string) *Vault {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Vault{api: api, bucket: bucket, prefix: prefix}
}

// Describe names the vault for the status bar.
func (v *Vault) Describe() string {
	return "s3://" + v.bucket + "/" + v.prefix
}

func (v *Vault) key(rel string) string {
	return v.prefix + rel
}

func (v *Vault) dirPrefix(rel string) string {
	if rel == model.RootPath {
		return v.prefix
	}
	return v.prefix + rel + "/"
}

// ListDirectory returns the children of rel, folders first, then by
// case-insensitive name.
func (v *Vault) ListDirectory(ctx context.Context, rel string) (nodes []*model.TreeNode, err error) {
	defer observe("list", time.Now(), &err)
	prefix := v.dirPrefix(rel)

	var dirs []string
	var files []string
	p := s3.NewListObjectsV2Paginator(v.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(v.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, backend.Wrap("list", rel, mapErr(err))
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if model.ValidName(name) && name != stateDirName {
				dirs = append(dirs, name)
			}
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if model.ValidName(name) {
				files = append(files, name)
			}
		}
	}

	if len(dirs) == 0 && len(files) == 0 && rel != model.RootPath {
		exists, err := v.isFolder(ctx, rel)
		if err != nil {
			return nil, backend.Wrap("list", rel, err)
		}
		if !exists {
			return nil, backend.Wrap("list", rel, backend.ErrNotFound)
		}
	}

	nodes = make([]*model.TreeNode, 0, len(dirs)+len(files))
	for _, name := range dirs {
		path := model.Join(rel, name)
		has, err := v.hasEntries(ctx, path)
		if err != nil {
			return nil, backend.Wrap("list", rel, err)
		}
		nodes = append(nodes, &model.TreeNode{Name: name, Path: path, IsDir: true, HasChildren: has})
	}
	for _, name := range files {
		nodes = append(nodes, &model.TreeNode{Name: name, Path: model.Join(rel, name)})
	}
	sortNodes(nodes)
	debug.Log("s3vault: listed %q (%d entries)", rel, len(nodes))
	return nodes, nil
}

func sortNodes(nodes []*model.TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if la != lb {
			return la < lb
		}
		return a.Name < b.Name
	})
}

// hasEntries reports whether the folder holds anything besides its marker.
func (v *Vault) hasEntries(ctx context.Context, rel string) (bool, error) {
	prefix := v.dirPrefix(rel)
	out, err := v.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(v.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(2),
	})
	if err != nil {
		return false, mapErr(err)
	}
	if len(out.CommonPrefixes) > 0 {
		return true, nil
	}
	for _, obj := range out.Contents {
		if aws.ToString(obj.Key) != prefix {
			return true, nil
		}
	}
	return false, nil
}

// isFolder reports whether any key lives under rel's prefix.
func (v *Vault) isFolder(ctx context.Context, rel string) (bool, error) {
	if rel == model.RootPath {
		return true, nil
	}
	out, err := v.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(v.bucket),
		Prefix:  aws.String(v.dirPrefix(rel)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, mapErr(err)
	}
	return len(out.Contents) > 0, nil
}

func (v *Vault) isFile(ctx context.Context, rel string) (bool, error) {
	_, err := v.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(rel)),
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(mapErr(err), backend.ErrNotFound) {
		return false, nil
	}
	return false, mapErr(err)
}

// stat reports whether rel exists and whether it is a folder.
func (v *Vault) stat(ctx context.Context, rel string) (exists, isDir bool, err error) {
	if ok, err := v.isFile(ctx, rel); err != nil || ok {
		return ok, false, err
	}
	ok, err := v.isFolder(ctx, rel)
	return ok, ok, err
}

// checkFree fails unless parent is a folder and parent/name is unused.
func (v *Vault) checkFree(ctx context.Context, parent, name string) error {
	if !model.ValidName(name) {
		return fmt.Errorf("invalid name %q", name)
	}
	if parent != model.RootPath {
		exists, isDir, err := v.stat(ctx, parent)
		if err != nil {
			return err
		}
		if !exists {
			return backend.ErrNotFound
		}
		if !isDir {
			return backend.ErrNotDir
		}
	}
	exists, _, err := v.stat(ctx, model.Join(parent, name))
	if err != nil {
		return err
	}
	if exists {
		return backend.ErrExists
	}
	return nil
}

func (v *Vault) put(ctx context.Context, key string) error {
	_, err := v.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(key),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	return mapErr(err)
}

// CreateFile writes an empty note object.
func (v *Vault) CreateFile(ctx context.Context, parent, name string) (rel string, err error) {
	defer observe("create_file", time.Now(), &err)
	rel = model.Join(parent, name)
	if err := v.checkFree(ctx, parent, name); err != nil {
		return "", backend.Wrap("create_file", rel, err)
	}
	if err := v.put(ctx, v.key(rel)); err != nil {
		return "", backend.Wrap("create_file", rel, err)
	}
	return rel, nil
}

// CreateFolder writes a folder marker.
func (v *Vault) CreateFolder(ctx context.Context, parent, name string) (err error) {
	defer observe("create_folder", time.Now(), &err)
	rel := model.Join(parent, name)
	if err := v.checkFree(ctx, parent, name); err != nil {
		return backend.Wrap("create_folder", rel, err)
	}
	if err := v.put(ctx, v.dirPrefix(rel)); err != nil {
		return backend.Wrap("create_folder", rel, err)
	}
	return nil
}

// keysUnder lists every key below a folder, its marker included.
func (v *Vault) keysUnder(ctx context.Context, rel string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(v.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.bucket),
		Prefix: aws.String(v.dirPrefix(rel)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (v *Vault) del(ctx context.Context, key string) error {
	_, err := v.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	return mapErr(err)
}

// DeleteItem removes a note or every object below a folder.
func (v *Vault) DeleteItem(ctx context.Context, rel string) (err error) {
	defer observe("delete", time.Now(), &err)
	if rel == model.RootPath {
		return backend.Wrap("delete", rel, backend.ErrPermission)
	}
	exists, isDir, err := v.stat(ctx, rel)
	if err != nil {
		return backend.Wrap("delete", rel, err)
	}
	if !exists {
		return backend.Wrap("delete", rel, backend.ErrNotFound)
	}
	if !isDir {
		return backend.Wrap("delete", rel, v.del(ctx, v.key(rel)))
	}
	keys, err := v.keysUnder(ctx, rel)
	if err != nil {
		return backend.Wrap("delete", rel, err)
	}
	for _, k := range keys {
		if err := v.del(ctx, k); err != nil {
			return backend.Wrap("delete", rel, err)
		}
	}
	return nil
}

// relocate copies rel (and everything under it, for a folder) to dst and
// then deletes the originals. S3 has no atomic rename.
func (v *Vault) relocate(ctx context.Context, rel, dst string, isDir bool) error {
	if !isDir {
		if err := v.copy(ctx, v.key(rel), v.key(dst)); err != nil {
			return err
		}
		return v.del(ctx, v.key(rel))
	}

	keys, err := v.keysUnder(ctx, rel)
	if err != nil {
		return err
	}
	oldPrefix, newPrefix := v.dirPrefix(rel), v.dirPrefix(dst)
	for _, k := range keys {
		if err := v.copy(ctx, k, newPrefix+strings.TrimPrefix(k, oldPrefix)); err != nil {
			return err
		}
	}
	for _, k := range keys {
		if err := v.del(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vault) copy(ctx context.Context, src, dst string) error {
	_, err := v.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(v.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(copySource(v.bucket, src)),
	})
	return mapErr(err)
}

// copySource builds the URL-encoded "bucket/key" form CopyObject expects.
func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}

// RenameItem renames an entry within its folder.
func (v *Vault) RenameItem(ctx context.Context, oldRel, newName string) (res backend.RenameResult, err error) {
	defer observe("rename", time.Now(), &err)
	if oldRel == model.RootPath {
		return res, backend.Wrap("rename", oldRel, backend.ErrPermission)
	}
	exists, isDir, err := v.stat(ctx, oldRel)
	if err != nil {
		return res, backend.Wrap("rename", oldRel, err)
	}
	if !exists {
		return res, backend.Wrap("rename", oldRel, backend.ErrNotFound)
	}
	parent := model.Parent(oldRel)
	newRel := model.Join(parent, newName)
	if err := v.checkFree(ctx, parent, newName); err != nil {
		return res, backend.Wrap("rename", newRel, err)
	}
	if err := v.relocate(ctx, oldRel, newRel, isDir); err != nil {
		return res, backend.Wrap("rename", oldRel, err)
	}
	return backend.RenameResult{NewPath: newRel, IsDir: isDir}, nil
}

// MoveItem moves an entry into another folder, keeping its name.
func (v *Vault) MoveItem(ctx context.Context, srcRel, targetDir string) (res backend.MoveResult, err error) {
	defer observe("move", time.Now(), &err)
	if srcRel == model.RootPath || model.IsSelfOrDescendant(targetDir, srcRel) {
		return res, backend.Wrap("move", srcRel, backend.ErrPermission)
	}
	exists, isDir, err := v.stat(ctx, srcRel)
	if err != nil {
		return res, backend.Wrap("move", srcRel, err)
	}
	if !exists {
		return res, backend.Wrap("move", srcRel, backend.ErrNotFound)
	}
	name := model.Base(srcRel)
	newRel := model.Join(targetDir, name)
	if err := v.checkFree(ctx, targetDir, name); err != nil {
		return res, backend.Wrap("move", newRel, err)
	}
	if err := v.relocate(ctx, srcRel, newRel, isDir); err != nil {
		return res, backend.Wrap("move", srcRel, err)
	}
	return backend.MoveResult{NewPath: newRel}, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordStorageOperation("s3", op, time.Since(start), *err == nil)
}

// mapErr converts S3 API errors to the backend sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return backend.ErrNotFound
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: %v", backend.ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %v", backend.ErrPermission, err)
		case "NotFound", "NoSuchKey":
			return backend.ErrNotFound
		}
	}
	return err
}
