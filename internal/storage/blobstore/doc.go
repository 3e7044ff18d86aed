// Package blobstore implements the job BlobStore on Azure Blob Storage and
// on a local directory. Both keep source audio and transcript artifacts in
// separate containers, create containers on first use and overwrite on put.
package blobstore
