package publishers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePublishersFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writePublishersFile(t, "publishers.yaml", `
publishers:
  - id: main-queue
    type: Queue
    queue:
      provider: AWS-SQS
      sqs:
        uri: https://sqs.us-east-1.amazonaws.com/123456789012/articles
        region: us-east-1
        access_key_id: AKIAEXAMPLE
        secret_access_key: secret
  - id: webhook
    type: http
    enabled: false
    http:
      url: https://hooks.example.com/articles
`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	require.Len(t, reg.All(), 2)

	cfg, ok := reg.ByID("main-queue")
	require.True(t, ok)
	// Type and provider are normalized to lower case.
	require.Equal(t, TypeQueue, cfg.Type)
	require.Equal(t, QueueProviderAWSSQS, cfg.Queue.Provider)

	enabled := reg.Enabled()
	require.Len(t, enabled, 1)
	require.Equal(t, "main-queue", enabled[0].ID)
}

func TestLoadRegistryExpandsEnv(t *testing.T) {
	t.Setenv("PUB_TEST_SECRET", "expanded-secret")

	path := writePublishersFile(t, "publishers.yaml", `
publishers:
  - id: q
    type: queue
    queue:
      provider: aws-sns
      sns:
        topic_arn: arn:aws:sns:us-east-1:123456789012:articles
        region: us-east-1
        access_key_id: AKIAEXAMPLE
        secret_access_key: ${PUB_TEST_SECRET}
`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	cfg, ok := reg.ByID("q")
	require.True(t, ok)
	require.Equal(t, "expanded-secret", cfg.Queue.SNS.SecretAccessKey)
}

func TestLoadRegistryDuplicateID(t *testing.T) {
	path := writePublishersFile(t, "publishers.yaml", `
publishers:
  - id: dup
    type: http
    http:
      url: https://a.example.com
  - id: dup
    type: http
    http:
      url: https://b.example.com
`)

	_, err := LoadRegistry(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate publisher id")
}

func TestValidateConfigErrors(t *testing.T) {
	enabled := true
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing id",
			cfg:  Config{Type: TypeHTTP, Enabled: &enabled},
			want: "id is required",
		},
		{
			name: "unknown type",
			cfg:  Config{ID: "x", Type: "smtp", Enabled: &enabled},
			want: "not supported",
		},
		{
			name: "http without url",
			cfg:  Config{ID: "x", Type: TypeHTTP, Enabled: &enabled, HTTP: &HTTPConfig{}},
			want: "http.url is required",
		},
		{
			name: "queue without provider config",
			cfg:  Config{ID: "x", Type: TypeQueue, Enabled: &enabled},
			want: "queue config required",
		},
		{
			name: "unknown queue provider",
			cfg: Config{ID: "x", Type: TypeQueue, Enabled: &enabled,
				Queue: &QueueConfig{Provider: "rabbitmq"}},
			want: "not supported",
		},
		{
			name: "sqs missing region",
			cfg: Config{ID: "x", Type: TypeQueue, Enabled: &enabled,
				Queue: &QueueConfig{Provider: QueueProviderAWSSQS, SQS: &SQSConfig{
					QueueURL:        "https://sqs.us-east-1.amazonaws.com/1/q",
					AccessKeyID:     "k",
					SecretAccessKey: "s",
				}}},
			want: "sqs.region is required",
		},
		{
			name: "gcp missing topic",
			cfg: Config{ID: "x", Type: TypeQueue, Enabled: &enabled,
				Queue: &QueueConfig{Provider: QueueProviderGCP, GCP: &GCPConfig{
					ProjectID: "proj",
				}}},
			want: "gcp.topic is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateConfig(tc.cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSanitizeConfigDefaults(t *testing.T) {
	cfg := sanitizeConfig(Config{
		ID:   "  hook  ",
		Type: " HTTP ",
		HTTP: &HTTPConfig{URL: " https://hooks.example.com ", Headers: map[string]string{" X-Key ": " v ", "Empty": " "}},
	})

	require.Equal(t, "hook", cfg.ID)
	require.Equal(t, TypeHTTP, cfg.Type)
	require.True(t, cfg.EnabledValue())
	require.Equal(t, "https://hooks.example.com", cfg.HTTP.URL)
	require.Equal(t, httpDefaultMethod, cfg.HTTP.Method)
	require.Equal(t, httpDefaultTimeoutSeconds, cfg.HTTP.TimeoutSeconds)
	require.Equal(t, map[string]string{"X-Key": "v"}, cfg.HTTP.Headers)
}
