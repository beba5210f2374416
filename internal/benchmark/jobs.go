package benchmark

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

// JobController manages the load generator for one run.
type JobController interface {
	// Delete removes any existing load job and waits for it to be gone.
	Delete(ctx context.Context) error
	// Create starts a load job and waits until every worker is ready.
	Create(ctx context.Context, rate int, duration string, workers int, affinity bool) error
	// Done reports whether every worker has completed.
	Done(ctx context.Context, workers int) (bool, error)
	// CollectLogs saves each worker's output as <outdir>/<rate>-<seq>-<pod>.log
	// and returns the paths written.
	CollectLogs(ctx context.Context, outdir string, rate, seq int) ([]string, error)
}

const (
	LoadGenWrk2 = "wrk2"
	LoadGenOha  = "oha"

	componentLabel = "faces.buoyant.io/component"
	roleLabel      = "buoyant.io/meshtest-role"
	jobNameLabel   = "batch.kubernetes.io/job-name"
	target         = "http://face/"
)

//go:embed templates/*.yaml
var templates embed.FS

// DefaultTemplate returns the built-in Job manifest for a load generator.
func DefaultTemplate(loadgen string) ([]byte, error) {
	b, err := templates.ReadFile("templates/" + loadgen + ".yaml")
	if err != nil {
		return nil, errors.Errorf("unknown load generator %q", loadgen)
	}
	return b, nil
}

// Command is the load generator command line for one worker.
func Command(loadgen string, podRate int, duration string) ([]string, error) {
	switch loadgen {
	case LoadGenWrk2:
		return []string{
			"/wrk", "-t", "8", "-c", "200", "-d", duration,
			"-R", strconv.Itoa(podRate), "--latency", target,
		}, nil
	case LoadGenOha:
		return []string{
			"/bin/oha", "-c", "200", "-z", duration, "-q", strconv.Itoa(podRate),
			"--latency-correction", "--no-tui", "--json", target,
		}, nil
	default:
		return nil, errors.Errorf("unknown load generator %q", loadgen)
	}
}

type KubeJobs struct {
	client    kubernetes.Interface
	loadgen   string
	namespace string
	template  *batchv1.Job

	PollInterval  time.Duration
	StartTimeout  time.Duration
	DeleteTimeout time.Duration
}

var _ JobController = &KubeJobs{}

// NewKubeJobs decodes a Job manifest. The job is named after the load
// generator; the manifest's name and namespace are overridden.
func NewKubeJobs(client kubernetes.Interface, loadgen, namespace string, manifest []byte) (*KubeJobs, error) {
	if _, err := Command(loadgen, 1, "1s"); err != nil {
		return nil, err
	}
	job := &batchv1.Job{}
	if err := yaml.UnmarshalStrict(manifest, job); err != nil {
		return nil, errors.Wrap(err, "decoding job manifest")
	}
	if len(job.Spec.Template.Spec.Containers) == 0 {
		return nil, errors.New("job manifest has no containers")
	}
	job.Name = loadgen
	job.Namespace = namespace

	return &KubeJobs{
		client:        client,
		loadgen:       loadgen,
		namespace:     namespace,
		template:      job,
		PollInterval:  10 * time.Second,
		StartTimeout:  100 * time.Second,
		DeleteTimeout: 100 * time.Second,
	}, nil
}

// Build returns the Job for one run without submitting it.
func (k *KubeJobs) Build(rate int, duration string, workers int, affinity bool) (*batchv1.Job, error) {
	if workers < 1 {
		return nil, errors.Errorf("workers must be at least 1, got %d", workers)
	}
	podRate := rate / workers
	command, err := Command(k.loadgen, podRate, duration)
	if err != nil {
		return nil, err
	}

	job := k.template.DeepCopy()
	spec := &job.Spec.Template.Spec
	spec.Containers[0].Command = command

	var aff *corev1.Affinity
	if workers > 1 {
		n := int32(workers)
		job.Spec.Parallelism = &n
		job.Spec.Completions = &n
		aff = &corev1.Affinity{PodAntiAffinity: &corev1.PodAntiAffinity{
			PreferredDuringSchedulingIgnoredDuringExecution: []corev1.WeightedPodAffinityTerm{{
				Weight: 100,
				PodAffinityTerm: corev1.PodAffinityTerm{
					LabelSelector: &metav1.LabelSelector{
						MatchExpressions: []metav1.LabelSelectorRequirement{{
							Key:      componentLabel,
							Operator: metav1.LabelSelectorOpIn,
							Values:   []string{k.loadgen},
						}},
					},
					TopologyKey: corev1.LabelHostname,
				},
			}},
		}}
	}
	if affinity {
		if aff == nil {
			aff = &corev1.Affinity{}
		}
		aff.NodeAffinity = &corev1.NodeAffinity{
			RequiredDuringSchedulingIgnoredDuringExecution: &corev1.NodeSelector{
				NodeSelectorTerms: []corev1.NodeSelectorTerm{{
					MatchExpressions: []corev1.NodeSelectorRequirement{{
						Key:      roleLabel,
						Operator: corev1.NodeSelectorOpIn,
						Values:   []string{"load"},
					}},
				}},
			},
		}
	}
	if aff != nil {
		spec.Affinity = aff
	}
	return job, nil
}

func (k *KubeJobs) Delete(ctx context.Context) error {
	jobs := k.client.BatchV1().Jobs(k.namespace)
	policy := metav1.DeletePropagationForeground
	err := jobs.Delete(ctx, k.loadgen, metav1.DeleteOptions{PropagationPolicy: &policy})
	if apierrors.IsNotFound(err) {
		klog.V(1).Infof("no existing %s job to delete", k.loadgen)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "deleting job %s", k.loadgen)
	}

	err = wait.PollUntilContextTimeout(ctx, k.PollInterval, k.DeleteTimeout, true, func(ctx context.Context) (bool, error) {
		_, err := jobs.Get(ctx, k.loadgen, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return true, nil
		}
		klog.V(1).Infof("waiting for %s to be deleted", k.loadgen)
		return false, err
	})
	if err != nil {
		return errors.Wrapf(err, "job %s did not delete", k.loadgen)
	}
	klog.Infof("deleted job %s", k.loadgen)
	return nil
}

func (k *KubeJobs) Create(ctx context.Context, rate int, duration string, workers int, affinity bool) error {
	job, err := k.Build(rate, duration, workers, affinity)
	if err != nil {
		return err
	}
	klog.Infof("starting %s (%d RPS, %s, %d workers, %d per pod)", k.loadgen, rate, duration, workers, rate/workers)

	jobs := k.client.BatchV1().Jobs(k.namespace)
	if _, err := jobs.Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return errors.Wrapf(err, "creating job %s", k.loadgen)
	}

	err = wait.PollUntilContextTimeout(ctx, k.PollInterval, k.StartTimeout, false, func(ctx context.Context) (bool, error) {
		j, err := jobs.Get(ctx, k.loadgen, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		klog.V(1).Infof("waiting for %s to start", k.loadgen)
		return j.Status.Ready != nil && int(*j.Status.Ready) == workers, nil
	})
	if err != nil {
		return errors.Wrapf(err, "job %s did not start", k.loadgen)
	}
	klog.Infof("%s running", k.loadgen)
	return nil
}

func (k *KubeJobs) Done(ctx context.Context, workers int) (bool, error) {
	j, err := k.client.BatchV1().Jobs(k.namespace).Get(ctx, k.loadgen, metav1.GetOptions{})
	if err != nil {
		return false, errors.Wrapf(err, "reading job %s", k.loadgen)
	}
	return int(j.Status.Succeeded) == workers, nil
}

func (k *KubeJobs) CollectLogs(ctx context.Context, outdir string, rate, seq int) ([]string, error) {
	pods, err := k.client.CoreV1().Pods(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", jobNameLabel, k.loadgen),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s pods", k.loadgen)
	}

	paths := make([]string, 0, len(pods.Items))
	for _, pod := range pods.Items {
		klog.V(1).Infof("collecting logs from %s", pod.Name)
		body, err := k.client.CoreV1().Pods(k.namespace).GetLogs(pod.Name, &corev1.PodLogOptions{}).DoRaw(ctx)
		if err != nil {
			return paths, errors.Wrapf(err, "reading logs of %s", pod.Name)
		}
		path := filepath.Join(outdir, fmt.Sprintf("%d-%d-%s.log", rate, seq, pod.Name))
		if err := os.WriteFile(path, body, 0644); err != nil {
			return paths, errors.Wrap(err, "writing log file")
		}
		paths = append(paths, path)
	}
	return paths, nil
}
