package resume

// 区块与字段键常量，由标题派生，改动标题即改动键
const (
	SectionPersonalInformation = "personal-information"
	SectionEducation           = "education"
	SectionWorkExperience      = "work-experience"
	SectionPortfolio           = "portfolio"
	SectionSkills              = "skills"
	SectionProjects            = "projects"
	SectionReferences          = "references"
	SectionCertifications      = "certifications"
	SectionLanguages           = "languages"

	FieldFirstName   = "first-name"
	FieldLastName    = "last-name"
	FieldDesignation = "designation"
	FieldEmail       = "email"
	FieldGitHub      = "github"
	FieldLinkedIn    = "linkedin"
)

// DefaultSections 内置的简历结构，顺序即规范顺序
func DefaultSections() []SectionDef {
	return []SectionDef{
		{
			Title:     "Personal Information",
			EntryType: EntrySingle,
			Fields: []FieldDef{
				{Label: "First Name", Type: FieldText},
				{Label: "Last Name", Type: FieldText},
				{Label: "Designation", Type: FieldText},
				{Label: "Email", Type: FieldText},
				{Label: "Phone", Type: FieldText},
				{Label: "Address", Type: FieldText},
				{Label: "City", Type: FieldText},
				{Label: "State", Type: FieldText},
				{Label: "Zip Code", Type: FieldText},
				{Label: "Country", Type: FieldText},
				{Label: "LinkedIn", Type: FieldText, URL: true},
				{Label: "GitHub", Type: FieldText, URL: true},
			},
		},
		{
			Title:     "Education",
			EntryType: EntryMultiple,
			Fields: []FieldDef{
				{Label: "School", Type: FieldText},
				{Label: "Degree", Type: FieldText},
				{Label: "Field of Study", Type: FieldText},
				{Label: "Start Date", Type: FieldDate},
				{Label: "End Date", Type: FieldDate},
				{Label: "Grade", Type: FieldNumber},
				{Label: "GPA", Type: FieldNumber},
				{Label: "Description", Type: FieldText},
			},
		},
		{
			Title:     "Work Experience",
			EntryType: EntryMultiple,
			Fields: []FieldDef{
				{Label: "Company", Type: FieldText},
				{Label: "Position", Type: FieldText},
				{Label: "Start Date", Type: FieldDate},
				{Label: "End Date", Type: FieldDate},
				{Label: "Description", Type: FieldText},
			},
		},
		{
			Title:     "Portfolio",
			EntryType: EntryMultiple,
			Fields: []FieldDef{
				{Label: "Title", Type: FieldText},
				{Label: "URL", Type: FieldText, URL: true},
				{Label: "Description", Type: FieldText},
			},
		},
		{
			Title:     "Skills",
			EntryType: EntryMultiple,
			Fields: []FieldDef{
				{Label: "Skill", Type: FieldText},
				{Label: "Description", Type: FieldText},
			},
		},
		{
			Title:     "Projects",
			EntryType: EntryMultiple,
			Fields: []FieldDef{
				{Label: "Project Name", Type: FieldText},
				{Label: "Description", Type: FieldText},
			},
		},
		{
			Title:     "References",
			EntryType: EntryMultiple,
			Fields: []FieldDef{
				{Label: "Reference Name", Type: FieldText},
				{Label: "Description", Type: FieldText},
			},
		},
		{
			Title:     "Certifications",
			EntryType: EntryMultiple,
			Fields: []FieldDef{
				{Label: "Certification Name", Type: FieldText},
				{Label: "Description", Type: FieldText},
			},
		},
		{
			Title:     "Languages",
			EntryType: EntryMultiple,
			Fields: []FieldDef{
				{Label: "Language", Type: FieldText},
				{Label: "Proficiency", Type: FieldText},
			},
		},
	}
}
