// Package assetdex provides a Go client for the assetdex digital asset
// search service.
//
// The client acts on behalf of one principal; the service resolves that
// principal's site permissions on every call.
//
//	client, _ := assetdex.New("http://localhost:8080",
//	    assetdex.WithAPIKey("secret"),
//	    assetdex.WithUserID("u-123"),
//	)
//	resp, _ := client.Search(ctx, assetdex.SearchRequest{Query: "grey sofa category:photo"})
//	for _, a := range resp.Assets {
//	    fmt.Println(a.DisplayName, a.Score)
//	}
package assetdex
