package blaster

import (
	"embed"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/masht-bio/masht/pkg/logging"
)

//go:embed data/biomart_feats_query.xml data/biomart_seqs_query.xml
var biomartQueries embed.FS

const biomartEndpoint = "https://plants.ensembl.org/biomart/martservice"

const biomartRetries = 5

// QueryBioMart downloads the GO annotation table and the transcript
// sequences from BioMart using the bundled request templates, writing
// biomart_feats.txt and biomart_seqs.txt into the output directory.
// The returned map has keys "feats" and "seqs".
func (b *Blaster) QueryBioMart() (map[string]string, error) {
	requests := map[string]string{
		"biomart_feats": "data/biomart_feats_query.xml",
		"biomart_seqs":  "data/biomart_seqs_query.xml",
	}

	out := map[string]string{}
	for name, tmpl := range requests {
		raw, err := biomartQueries.ReadFile(tmpl)
		if err != nil {
			return nil, fmt.Errorf("missing bundled request template %s: %w", tmpl, err)
		}

		query := strings.NewReplacer("\t", "", "\n", "", "\r", "").Replace(string(raw))

		if b.Verbose {
			fmt.Fprintf(b.Out, "fetching %s from BioMart. This can take a while...\n", name)
		}

		dest := filepath.Join(b.OutputDir, name+".txt")
		if err := fetchToFile(biomartEndpoint+"?query="+url.QueryEscape(query), dest); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		logging.Info("biomart file downloaded", zap.String("file", dest))
		short := strings.TrimPrefix(name, "biomart_")
		out[short] = dest
	}

	return out, nil
}

// fetchToFile downloads a URL to a file, retrying transient failures.
func fetchToFile(rawURL, dest string) error {
	var lastErr error

	for attempt := 0; attempt < biomartRetries; attempt++ {
		resp, err := http.Get(rawURL)
		if err != nil {
			lastErr = err
			logging.Warn("biomart request failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %s", resp.Status)
			logging.Warn("biomart request failed, retrying", zap.Int("attempt", attempt+1), zap.Error(lastErr))
			continue
		}

		f, err := os.Create(dest)
		if err != nil {
			resp.Body.Close()
			return err
		}
		_, err = io.Copy(f, resp.Body)
		resp.Body.Close()
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("exceeded %d attempts: %w", biomartRetries, lastErr)
}
