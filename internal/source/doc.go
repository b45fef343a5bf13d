// Package source provides the places a content tree can come from: a local
// directory ([Dir]) or a hash-addressed tar.gz bundle in S3 whose current
// hash is published in SSM ([Bundle]). Both implement content.Source.
package source
