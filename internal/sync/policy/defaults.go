package policy

// DefaultConfigurations returns the recruiting platform's built-in policy set.
// Deployments normally load policies from the entity_sync_configurations
// table or a topology file; this set seeds both.
func DefaultConfigurations() []Descriptor {
	return []Descriptor{
		{
			Name:               "Country",
			TableName:          "countries",
			DataClassification: ClassificationNonPersonal,
			SyncScope:          ScopeGlobalSanitized,
			LegalBasis:         LegalBasisNone,
			ProcessingPurpose:  "ReferenceData",
			IsEnabled:          true,
			Notes:              "Reference data, no personal information",
		},
		{
			Name:               "JobPost",
			TableName:          "job_posts",
			DataClassification: ClassificationNonPersonal,
			SyncScope:          ScopeScopedByExposure,
			LegalBasis:         LegalBasisNone,
			ProcessingPurpose:  "JobAdPublishing",
			DependsOn:          []string{"Country"},
			IsEnabled:          true,
			Notes:              "Propagates to regions serving the post's exposure countries",
		},
		{
			Name:                              "Candidate",
			TableName:                         "candidates",
			DataClassification:                ClassificationPersonal,
			SyncScope:                         ScopeEUOnly,
			LegalBasis:                        LegalBasisConsent,
			LegalBasisRef:                     "privacy-policy-candidate-data",
			ProcessingPurpose:                 "Recruitment",
			RequiresSanitizationForGlobalSync: true,
			AllowSanitizationOverrideConsent:  true,
			IsEnabled:                         true,
			Notes:                             "Personal data, sanitization or explicit consent required for global sync",
		},
		{
			Name:                              "JobApplication",
			TableName:                         "job_applications",
			DataClassification:                ClassificationPersonal,
			SyncScope:                         ScopeEUOnly,
			LegalBasis:                        LegalBasisConsent,
			LegalBasisRef:                     "privacy-policy-application-data",
			ProcessingPurpose:                 "Recruitment",
			RequiresSanitizationForGlobalSync: true,
			AllowSanitizationOverrideConsent:  true,
			DependsOn:                         []string{"Candidate", "JobPost"},
			IsEnabled:                         true,
		},
		{
			Name:                              "Interview",
			TableName:                         "interviews",
			DataClassification:                ClassificationSensitive,
			SyncScope:                         ScopeEUOnly,
			LegalBasis:                        LegalBasisConsent,
			LegalBasisRef:                     "privacy-policy-interview-data",
			ProcessingPurpose:                 "Recruitment",
			RequiresSanitizationForGlobalSync: true,
			DependsOn:                         []string{"JobApplication"},
			IsEnabled:                         true,
			Notes:                             "Sensitive, override consent not accepted",
		},
		{
			Name:                              "UserProfile",
			TableName:                         "user_profiles",
			DataClassification:                ClassificationPersonal,
			SyncScope:                         ScopeEUOnly,
			LegalBasis:                        LegalBasisConsent,
			LegalBasisRef:                     "privacy-policy-user-profile",
			ProcessingPurpose:                 "AccountManagement",
			RequiresSanitizationForGlobalSync: true,
			AllowSanitizationOverrideConsent:  true,
			IsEnabled:                         true,
		},
		{
			Name:                              "File",
			TableName:                         "files",
			DataClassification:                ClassificationPersonal,
			SyncScope:                         ScopeEUOnly,
			LegalBasis:                        LegalBasisConsent,
			LegalBasisRef:                     "privacy-policy-file-uploads",
			ProcessingPurpose:                 "DocumentStorage",
			RequiresSanitizationForGlobalSync: true,
			AllowSanitizationOverrideConsent:  true,
			IsEnabled:                         true,
			Notes:                             "Resumes and documents",
		},
		{
			Name:                              "Comment",
			TableName:                         "comments",
			DataClassification:                ClassificationPersonal,
			SyncScope:                         ScopeEUOnly,
			LegalBasis:                        LegalBasisConsent,
			ProcessingPurpose:                 "Recruitment",
			RequiresSanitizationForGlobalSync: true,
			AllowSanitizationOverrideConsent:  true,
			DependsOn:                         []string{"Candidate", "JobApplication", "JobPost"},
			IsEnabled:                         true,
		},
		{
			Name:                              "Feedback",
			TableName:                         "feedbacks",
			DataClassification:                ClassificationSensitive,
			SyncScope:                         ScopeEUOnly,
			LegalBasis:                        LegalBasisConsent,
			LegalBasisRef:                     "privacy-policy-feedback",
			ProcessingPurpose:                 "Recruitment",
			RequiresSanitizationForGlobalSync: true,
			DependsOn:                         []string{"Interview"},
			IsEnabled:                         true,
		},
		{
			Name:               "InterviewConfiguration",
			TableName:          "interview_configurations",
			DataClassification: ClassificationNonPersonal,
			SyncScope:          ScopeGlobalSanitized,
			LegalBasis:         LegalBasisNone,
			ProcessingPurpose:  "ConfigurationManagement",
			IsEnabled:          true,
		},
		{
			Name:               "JobPostStep",
			TableName:          "job_post_steps",
			DataClassification: ClassificationNonPersonal,
			SyncScope:          ScopeScopedByExposure,
			LegalBasis:         LegalBasisNone,
			ProcessingPurpose:  "WorkflowManagement",
			DependsOn:          []string{"JobPost"},
			IsEnabled:          true,
		},
		{
			Name:                              "JobApplicationStep",
			TableName:                         "job_application_steps",
			DataClassification:                ClassificationPersonal,
			SyncScope:                         ScopeEUOnly,
			LegalBasis:                        LegalBasisConsent,
			ProcessingPurpose:                 "Recruitment",
			RequiresSanitizationForGlobalSync: true,
			AllowSanitizationOverrideConsent:  true,
			DependsOn:                         []string{"JobApplication", "JobPostStep"},
			IsEnabled:                         true,
		},
	}
}
