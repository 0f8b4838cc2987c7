package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	conf, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if conf.Mash != "mash" || conf.Rscript != "Rscript" || conf.BlastDir != "" {
		t.Errorf("problem in TestLoadEmptyPathGivesDefaults(): %+v", conf)
	}
}

func TestLoadOverridesAndKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masht.toml")
	data := "mash = \"/opt/mash/mash\"\nblast = \"/opt/blast/bin\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Mash != "/opt/mash/mash" {
		t.Errorf("Mash = %q", conf.Mash)
	}
	if conf.BlastDir != "/opt/blast/bin" {
		t.Errorf("BlastDir = %q", conf.BlastDir)
	}
	if conf.Rscript != "Rscript" {
		t.Errorf("Rscript = %q, want PATH default", conf.Rscript)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Errorf("missing config file should be an error")
	}
}

func TestBlastTool(t *testing.T) {
	c := Default()
	if got := c.BlastTool("blastn"); got != "blastn" {
		t.Errorf("BlastTool() = %q", got)
	}
	c.BlastDir = "/opt/blast/bin"
	if got := c.BlastTool("makeblastdb"); got != filepath.Join("/opt/blast/bin", "makeblastdb") {
		t.Errorf("BlastTool() = %q", got)
	}
}
