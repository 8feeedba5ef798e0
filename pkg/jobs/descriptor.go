package jobs

// Tasks the compute cluster runs.
const (
	TaskKGETraining = "KGE_TRAINING_PYG"
	TaskKGEPredict  = "KGE_PREDICT_PYG"
)

// DefaultUserName is the user name jobs are submitted as.
const DefaultUserName = "DUMMY_USER"

// JobDescriptor is a request to start a job.
type JobDescriptor struct {
	UserName   string     `json:"user_name"`
	Task       string     `json:"task"`
	TaskConfig TaskConfig `json:"task_config"`

	// GraphArrowURI is where the job reads the graph from.
	GraphArrowURI string `json:"graph_arrow_uri"`

	// EncryptedDBPassword is passed through as is. Omitted when empty.
	EncryptedDBPassword string `json:"encrypted_db_password,omitempty"`
}

type TaskConfig struct {
	GraphConfig *GraphConfig `json:"graph_config,omitempty"`
	ModelName   string       `json:"modelname"`

	// TaskConfig is the algorithm configuration of the task.
	TaskConfig map[string]any `json:"task_config"`

	MLflow *MLflow `json:"mlflow,omitempty"`
}

type GraphConfig struct {
	Name string `json:"name"`
}

type MLflow struct {
	Config MLflowConfig `json:"config"`
}

type MLflowConfig struct {
	TrackingURI    string `json:"tracking_uri"`
	ExperimentName string `json:"experiment_name"`
}

// Job statuses reported by the cluster.
const (
	JobRunning = "running"
	JobExited  = "exited"
	JobFailed  = "failed"
)

// StatusReport is a job status reported by the cluster.
type StatusReport struct {
	JobStatus string   `json:"job_status"`
	Errors    []string `json:"errors,omitempty"`

	// StatusCode of the HTTP response carrying this report.
	StatusCode int `json:"-"`
}

type startResponse struct {
	JobId string `json:"job_id"`
}
