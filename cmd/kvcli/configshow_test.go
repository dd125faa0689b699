package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/structs"
)

type testInner struct {
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
}

type testEmbedded struct {
	Host string `yaml:"host"`
}

type testConf struct {
	Name         string    `yaml:"name"`
	Inner        testInner `yaml:"inner"`
	testEmbedded `yaml:",inline"`
	Public       testEmbedded `yaml:"public"`
	Skipped      string       `yaml:"-"`
}

func TestPrintFields(t *testing.T) {
	var buf bytes.Buffer
	conf := testConf{
		Name: "kv",
		Inner: testInner{
			Password: "secret",
			Port:     5432,
		},
		Public:  testEmbedded{Host: "example.org"},
		Skipped: "x",
	}
	printFields(&buf, "", structs.New(conf).Fields())
	out := buf.String()
	for _, want := range []string{
		"name: kv\n",
		"inner.password: ***\n",
		"inner.port: 5432\n",
		"public.host: example.org\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Errorf("password leaked:\n%s", out)
	}
	if strings.Contains(out, "Skipped") || strings.Contains(out, ": x\n") {
		t.Errorf("skipped field printed:\n%s", out)
	}
}

func TestUserIDByLogin(t *testing.T) {
	if _, err := userIDByLogin(nil, "admin"); err == nil {
		t.Fatal("expected an error for unknown login")
	}
}
