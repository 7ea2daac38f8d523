// Package binary fetches the upstream CookCLI executable for one target
// architecture during image construction.
//
// # Fetch pipeline
//
//  1. Parse the architecture (unsupported values fail before any request)
//  2. Build the deterministic release URL
//     <base>/v<version>/cook-<suffix>.tar.gz
//  3. Download the archive once into a scratch directory
//  4. Optionally check a SHA256 checksum file and an OpenPGP detached
//     signature, when configured
//  5. Extract the cook executable under its canonical name and mark it
//     executable
//  6. Run "cook --version" and require a zero exit status
//  7. Copy the verified executable to its destination and drop the
//     scratch directory
//
// There is no retry here: a failed download or verification aborts the
// build and the operator re-invokes it.
//
// # Usage
//
//	fetcher := binary.NewFetcher(binary.Options{}, logger)
//	result, err := fetcher.Fetch(ctx, binary.FetchOptions{
//	    Version: "0.18.1",
//	    Arch:    "arm64",
//	    Dest:    "/out/cook",
//	})
package binary
