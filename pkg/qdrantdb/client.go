package qdrantdb

import (
	"github.com/qdrant/go-client/qdrant"
)

const DefaultCollectionName = "site_pages"

type SitePagesClient struct {
	Client     *qdrant.Client
	collection string
	dimension  uint64
}

func NewClient(host string, port int, collection string, dimension int) (*SitePagesClient, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port, // gRPC port
	})
	if err != nil {
		return nil, err
	}
	if collection == "" {
		collection = DefaultCollectionName
	}
	return &SitePagesClient{
		Client:     client,
		collection: collection,
		dimension:  uint64(dimension),
	}, nil
}

func (c *SitePagesClient) Close() error {
	return c.Client.Close()
}
