// Package deploy runs a Jötnar worker as a one-shot Kubernetes Job, for
// environments that deploy one process per task instead of a long-lived
// polling loop. It has no Docker runner.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// WorkerSpec describes one queue-consuming worker to deploy.
type WorkerSpec struct {
	TaskID  string
	Queue   string // e.g. "triage_queue", "rebase_queue_c9s"
	EnvVars map[string]string
}

// K8sJobRunner creates one Kubernetes Job per Task, mirroring the way the
// pipeline's own workers would be scheduled in a cluster deployment.
type K8sJobRunner struct {
	Client     *kubernetes.Clientset
	Namespace  string
	Image      string
	PullPolicy corev1.PullPolicy
	Logger     *slog.Logger
}

// NewK8sJobRunner builds a client from in-cluster config, falling back to
// the local kubeconfig for operator-driven dry runs.
func NewK8sJobRunner(logger *slog.Logger, image, namespace string, pullPolicy corev1.PullPolicy) (*K8sJobRunner, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		var kubeconfig string
		if home := homedir.HomeDir(); home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		} else {
			kubeconfig = os.Getenv("KUBECONFIG")
		}
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("load kubeconfig: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("create k8s client: %w", err)
	}

	if namespace == "" {
		namespace = "default"
		if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
			namespace = strings.TrimSpace(string(data))
		}
	}

	return &K8sJobRunner{Client: clientset, Namespace: namespace, Image: image, PullPolicy: pullPolicy, Logger: logger}, nil
}

// subcommandForQueue maps a queue name to the cmd/jotnar subcommand that
// drains it, so a deployed Job runs the same binary entry point an operator
// would run by hand.
func subcommandForQueue(queue string) string {
	switch {
	case queue == "triage_queue":
		return "triage"
	case strings.HasPrefix(queue, "rebase_queue"):
		return "rebase"
	case strings.HasPrefix(queue, "backport_queue"):
		return "backport"
	default:
		return "triage"
	}
}

// Run creates (or reuses) a Job that runs
// `jotnar <subcommand> --k8s-job-mode --queue <queue> --task <id>` once and
// exits, matching the at-most-one-worker-per-Task shape the pipeline
// controller enforces via the queue's single-owner pop.
func (r *K8sJobRunner) Run(ctx context.Context, spec WorkerSpec) error {
	jobName := fmt.Sprintf("jotnar-%s-%s", sanitizeK8sName(spec.Queue), sanitizeK8sName(spec.TaskID))

	existing, err := r.Client.BatchV1().Jobs(r.Namespace).Get(ctx, jobName, metav1.GetOptions{})
	if err == nil {
		switch {
		case existing.Status.Succeeded > 0:
			r.Logger.Info("job already succeeded", "name", jobName)
			return nil
		case existing.Status.Failed > 0:
			delPolicy := metav1.DeletePropagationBackground
			if err := r.Client.BatchV1().Jobs(r.Namespace).Delete(ctx, jobName, metav1.DeleteOptions{PropagationPolicy: &delPolicy}); err != nil {
				return fmt.Errorf("delete failed job: %w", err)
			}
			return fmt.Errorf("cleaned up failed job %s, retry next cycle", jobName)
		default:
			r.Logger.Info("job already active", "name", jobName)
			return nil
		}
	} else if !strings.Contains(err.Error(), "not found") {
		return fmt.Errorf("check existing job: %w", err)
	}

	ttl := int32(3600)
	backoff := int32(0)

	var envVars []corev1.EnvVar
	for k, v := range spec.EnvVars {
		envVars = append(envVars, corev1.EnvVar{Name: k, Value: v})
	}
	envVars = append(envVars, corev1.EnvVar{Name: "JOTNAR_QUEUE", Value: spec.Queue})

	secretName := os.Getenv("JOTNAR_AGENT_SECRET_NAME")
	if secretName == "" {
		secretName = "jotnar-agent-secrets"
	}
	optional := true
	envFrom := []corev1.EnvFromSource{{
		SecretRef: &corev1.SecretEnvSource{
			LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
			Optional:             &optional,
		},
	}}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: jobName},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: &ttl,
			BackoffLimit:            &backoff,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{
					"app":   "jotnar-worker",
					"queue": spec.Queue,
					"task":  spec.TaskID,
				}},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:            "worker",
						Image:           r.Image,
						ImagePullPolicy: r.PullPolicy,
						Command:         []string{"/usr/local/bin/jotnar"},
						Args:            []string{subcommandForQueue(spec.Queue), "--k8s-job-mode", "--queue", spec.Queue, "--task", spec.TaskID},
						Env:             envVars,
						EnvFrom:         envFrom,
					}},
				},
			},
		},
	}

	if _, err := r.Client.BatchV1().Jobs(r.Namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	r.Logger.Info("job created", "name", jobName)
	return nil
}

var k8sNameSanitizerRegex = regexp.MustCompile("[^a-z0-9]+")

func sanitizeK8sName(name string) string {
	name = strings.ToLower(name)
	name = k8sNameSanitizerRegex.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}
